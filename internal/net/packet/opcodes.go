package packet

// Client -> server opcodes (first byte of every message after the handshake).
const (
	C_OPCODE_LOGOUT          = 0x14
	C_OPCODE_PING            = 0x1D
	C_OPCODE_PING_BACK       = 0x1E
	C_OPCODE_AWARE_RANGE     = 0x2A
	C_OPCODE_PREDICTIVE_WALK = 0x45
	C_OPCODE_AUTO_WALK       = 0x64
	C_OPCODE_MOVE_NORTH      = 0x65
	C_OPCODE_MOVE_EAST       = 0x66
	C_OPCODE_MOVE_SOUTH      = 0x67
	C_OPCODE_MOVE_WEST       = 0x68
	C_OPCODE_STOP_AUTO_WALK  = 0x69
	C_OPCODE_MOVE_NORTHEAST  = 0x6A
	C_OPCODE_MOVE_SOUTHEAST  = 0x6B
	C_OPCODE_MOVE_SOUTHWEST  = 0x6C
	C_OPCODE_MOVE_NORTHWEST  = 0x6D
	C_OPCODE_TURN_NORTH      = 0x6F
	C_OPCODE_TURN_EAST       = 0x70
	C_OPCODE_TURN_SOUTH      = 0x71
	C_OPCODE_TURN_WEST       = 0x72
	C_OPCODE_THROW           = 0x78
	C_OPCODE_USE_ITEM        = 0x82
	C_OPCODE_USE_ITEM_EX     = 0x83
	C_OPCODE_LOOK_AT         = 0x8C
	C_OPCODE_SAY             = 0x96
	C_OPCODE_FIGHT_MODES     = 0xA0
	C_OPCODE_ATTACK          = 0xA1
	C_OPCODE_FOLLOW          = 0xA2
	C_OPCODE_CANCEL_ATTACK   = 0xBE
	C_OPCODE_UPDATE_TILE     = 0xC9
	C_OPCODE_REQUEST_OUTFIT  = 0xD2
	C_OPCODE_SET_OUTFIT      = 0xD3
)

// Server -> client opcodes.
const (
	S_OPCODE_SELF_APPEAR       = 0x0A
	S_OPCODE_GM_ACTIONS        = 0x0B
	S_OPCODE_DISCONNECT        = 0x14
	S_OPCODE_WAIT_LIST         = 0x16
	S_OPCODE_PING              = 0x1D
	S_OPCODE_PING_BACK         = 0x1E
	S_OPCODE_AWARE_RANGE       = 0x4B
	S_OPCODE_MAP_DESCRIPTION   = 0x64
	S_OPCODE_MAP_NORTH         = 0x65
	S_OPCODE_MAP_EAST          = 0x66
	S_OPCODE_MAP_SOUTH         = 0x67
	S_OPCODE_MAP_WEST          = 0x68
	S_OPCODE_UPDATE_TILE       = 0x69
	S_OPCODE_ADD_TILE_THING    = 0x6A
	S_OPCODE_UPDATE_TILE_THING = 0x6B
	S_OPCODE_REMOVE_TILE_THING = 0x6C
	S_OPCODE_MOVE_CREATURE     = 0x6D
	S_OPCODE_MAGIC_EFFECT      = 0x83
	S_OPCODE_CREATURE_HEALTH   = 0x8C
	S_OPCODE_CREATURE_OUTFIT   = 0x8E
	S_OPCODE_STATS             = 0xA0
	S_OPCODE_SKILLS            = 0xA1
	S_OPCODE_ICONS             = 0xA2
	S_OPCODE_CANCEL_TARGET     = 0xA3
	S_OPCODE_CREATURE_SAY      = 0xAA
	S_OPCODE_TEXT_MESSAGE      = 0xB4
	S_OPCODE_CANCEL_WALK       = 0xB5
	S_OPCODE_WALK_ID           = 0xB6
	S_OPCODE_FLOOR_CHANGE_UP   = 0xBE
	S_OPCODE_FLOOR_CHANGE_DOWN = 0xBF
	S_OPCODE_OUTFIT_WINDOW     = 0xC8
)

// Login-server protocol opcodes.
const (
	S_LOGIN_OPCODE_ERROR          = 0x0A
	S_LOGIN_OPCODE_MOTD           = 0x14
	S_LOGIN_OPCODE_CHARACTER_LIST = 0x64
)

// Creature descriptor markers inside tile descriptions.
const (
	CreatureUnknown = 0x61
	CreatureKnown   = 0x62
)

// Tile description markers.
const (
	TileEnd = 0xFF
)
