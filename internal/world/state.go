package world

import "strings"

// Creature id ranges keep kinds apart on the wire.
const (
	playerIDBase  uint32 = 0x10000000
	cloneIDBase   uint32 = 0x20000000
	monsterIDBase uint32 = 0x40000000
	npcIDBase     uint32 = 0x80000000
)

// State tracks the players currently in the world and hands out creature ids.
// Single-goroutine access only (dispatcher).
type State struct {
	byID      map[uint32]*Player
	byGUID    map[uint32]*Player
	byName    map[string]*Player // lower-cased name
	byAccount map[uint32][]*Player

	nextClone   uint32
	nextMonster uint32
	nextNpc     uint32
}

func NewState() *State {
	return &State{
		byID:      make(map[uint32]*Player),
		byGUID:    make(map[uint32]*Player),
		byName:    make(map[string]*Player),
		byAccount: make(map[uint32][]*Player),
	}
}

// AssignPlayerID derives a stable creature id from the character guid, so a
// reconnecting client keeps the same id. A second copy of an online
// character gets an id from the clone range.
func (s *State) AssignPlayerID(p *Player) {
	p.id = playerIDBase + p.GUID
	if other, ok := s.byID[p.id]; ok && other != p {
		s.nextClone++
		p.id = cloneIDBase + s.nextClone
	}
}

// AssignNpcID gives a monster or npc a fresh creature id.
func (s *State) AssignNpcID(n *Npc) {
	if n.kind == KindMonster {
		s.nextMonster++
		n.id = monsterIDBase + s.nextMonster
		return
	}
	s.nextNpc++
	n.id = npcIDBase + s.nextNpc
}

// AddPlayer registers a player. With clones online the guid and name
// indexes keep the first copy.
func (s *State) AddPlayer(p *Player) {
	s.byID[p.id] = p
	if _, ok := s.byGUID[p.GUID]; !ok {
		s.byGUID[p.GUID] = p
	}
	name := strings.ToLower(p.name)
	if _, ok := s.byName[name]; !ok {
		s.byName[name] = p
	}
	s.byAccount[p.AccountID] = append(s.byAccount[p.AccountID], p)
}

// RemovePlayer unregisters a player.
func (s *State) RemovePlayer(p *Player) {
	if s.byID[p.id] != p {
		return
	}
	delete(s.byID, p.id)
	if s.byGUID[p.GUID] == p {
		delete(s.byGUID, p.GUID)
	}
	name := strings.ToLower(p.name)
	if s.byName[name] == p {
		delete(s.byName, name)
	}
	list := s.byAccount[p.AccountID]
	for i, x := range list {
		if x == p {
			list = append(list[:i], list[i+1:]...)
			break
		}
	}
	if len(list) == 0 {
		delete(s.byAccount, p.AccountID)
	} else {
		s.byAccount[p.AccountID] = list
	}
}

func (s *State) PlayerByID(id uint32) *Player     { return s.byID[id] }
func (s *State) PlayerByGUID(guid uint32) *Player { return s.byGUID[guid] }

// PlayerByName is case-insensitive.
func (s *State) PlayerByName(name string) *Player {
	return s.byName[strings.ToLower(name)]
}

// PlayersByAccount returns the account's online characters.
func (s *State) PlayersByAccount(accountID uint32) []*Player {
	return s.byAccount[accountID]
}

// PlayerCount returns the number of players online.
func (s *State) PlayerCount() int {
	return len(s.byID)
}

// AllPlayers iterates all online players.
func (s *State) AllPlayers(fn func(*Player)) {
	for _, p := range s.byID {
		fn(p)
	}
}
