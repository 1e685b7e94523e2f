// Package sequence decides which reading is on screen in rotate mode.
package sequence

// Rotation walks an ordered list of reading keys, wrapping at the end.
type Rotation struct {
	keys []string
	idx  int
}

func NewRotation(keys ...string) *Rotation {
	r := &Rotation{}
	r.Sync(keys)
	return r
}

// Sync replaces the key list. The current key stays current when it is still
// present; otherwise the position is kept and wrapped into the new list.
func (r *Rotation) Sync(keys []string) {
	cur, ok := r.Current()
	r.keys = append(r.keys[:0:0], keys...)
	if len(r.keys) == 0 {
		r.idx = 0
		return
	}
	if ok {
		for i, k := range r.keys {
			if k == cur {
				r.idx = i
				return
			}
		}
	}
	r.idx %= len(r.keys)
}

func (r *Rotation) Len() int { return len(r.keys) }

func (r *Rotation) Keys() []string { return append([]string(nil), r.keys...) }

// Current returns the key on screen, false when the list is empty.
func (r *Rotation) Current() (string, bool) {
	if len(r.keys) == 0 {
		return "", false
	}
	return r.keys[r.idx], true
}

// Advance moves to the next key and returns it.
func (r *Rotation) Advance() (string, bool) {
	if len(r.keys) == 0 {
		return "", false
	}
	r.idx = (r.idx + 1) % len(r.keys)
	return r.keys[r.idx], true
}

// Seek makes key current if present.
func (r *Rotation) Seek(key string) bool {
	for i, k := range r.keys {
		if k == key {
			r.idx = i
			return true
		}
	}
	return false
}
