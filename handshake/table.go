package handshake

// pendingTable holds every in-flight handshake under two indices sharing
// the same records. Each record carries its keys back, so removal clears
// both indices in one step and neither can keep an orphan entry.
type pendingTable struct {
	byTag    map[string]*Handshake
	byCookie map[string]*Handshake
}

func newPendingTable() pendingTable {
	return pendingTable{
		byTag:    make(map[string]*Handshake),
		byCookie: make(map[string]*Handshake),
	}
}

// insertByTag inserts h under tag. When the tag is already present the
// existing record is returned and inserted is false; nothing is
// overwritten.
func (t *pendingTable) insertByTag(tag string, h *Handshake) (record *Handshake, inserted bool) {
	if existing, ok := t.byTag[tag]; ok {
		return existing, false
	}
	h.Tag = tag
	h.tagKey = tag
	t.byTag[tag] = h
	return h, true
}

// bindCookie registers h under cookie. The record must already live in
// the tag index; cookies are issued only for records a 0x70 went out for.
func (t *pendingTable) bindCookie(h *Handshake, cookie string) {
	h.Cookie = cookie
	h.cookieKey = cookie
	t.byCookie[cookie] = h
}

func (t *pendingTable) findByTag(tag string) *Handshake {
	return t.byTag[tag]
}

func (t *pendingTable) findByCookie(cookie string) *Handshake {
	return t.byCookie[cookie]
}

// remove deletes h from whichever indices reference it. Idempotent.
func (t *pendingTable) remove(h *Handshake) {
	if h.cookieKey != "" {
		delete(t.byCookie, h.cookieKey)
		h.cookieKey = ""
	}
	if h.tagKey != "" {
		delete(t.byTag, h.tagKey)
		h.tagKey = ""
	}
}

// clear drops every record from both indices.
func (t *pendingTable) clear() {
	for _, h := range t.byTag {
		h.tagKey = ""
		h.cookieKey = ""
	}
	for _, h := range t.byCookie {
		h.tagKey = ""
		h.cookieKey = ""
	}
	t.byTag = make(map[string]*Handshake)
	t.byCookie = make(map[string]*Handshake)
}

func (t *pendingTable) len() int {
	return len(t.byTag)
}
