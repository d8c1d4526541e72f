package protocol

// knownCreatureCap bounds how many creature ids a client remembers.
const knownCreatureCap = 150

// knownSet tracks which creatures the client has a full description of.
type knownSet struct {
	ids map[uint32]struct{}
}

func newKnownSet() *knownSet {
	return &knownSet{ids: make(map[uint32]struct{}, knownCreatureCap)}
}

// check marks id as known. It reports whether id was already known and,
// when adding it overflowed the set, which id was evicted to make room.
// Creatures the client can no longer see are evicted first.
func (k *knownSet) check(id uint32, visible func(uint32) bool) (known bool, removed uint32) {
	if _, ok := k.ids[id]; ok {
		return true, 0
	}
	k.ids[id] = struct{}{}
	if len(k.ids) <= knownCreatureCap {
		return false, 0
	}
	for other := range k.ids {
		if other != id && !visible(other) {
			delete(k.ids, other)
			return false, other
		}
	}
	for other := range k.ids {
		if other != id {
			delete(k.ids, other)
			return false, other
		}
	}
	return false, 0
}

func (k *knownSet) has(id uint32) bool {
	_, ok := k.ids[id]
	return ok
}

func (k *knownSet) len() int { return len(k.ids) }

func (k *knownSet) reset() {
	clear(k.ids)
}
