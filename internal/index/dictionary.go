package index

// Dictionary assigns stable dense integer ids to term surfaces and tracks
// per-term document frequency. Ids are never reused; a term whose df drops
// to zero keeps its id.
type Dictionary struct {
	ids      map[string]uint32
	surfaces []string
	df       []uint32
	nextID   uint32
}

func NewDictionary() *Dictionary {
	return &Dictionary{
		ids: make(map[string]uint32),
	}
}

// Intern returns the id for surface, assigning the next dense id at first
// sight. The second return reports whether the term was newly created.
func (d *Dictionary) Intern(surface string) (uint32, bool) {
	if id, ok := d.ids[surface]; ok {
		return id, false
	}
	id := d.nextID
	d.nextID++
	d.ids[surface] = id
	d.surfaces = append(d.surfaces, surface)
	d.df = append(d.df, 0)
	return id, true
}

// Lookup returns the id for surface if it has been interned.
func (d *Dictionary) Lookup(surface string) (uint32, bool) {
	id, ok := d.ids[surface]
	return id, ok
}

// BumpDF adjusts the document frequency of a term, clamping at zero.
func (d *Dictionary) BumpDF(id uint32, delta int) {
	cur := int(d.df[id]) + delta
	if cur < 0 {
		cur = 0
	}
	d.df[id] = uint32(cur)
}

func (d *Dictionary) DF(id uint32) uint32 {
	return d.df[id]
}

func (d *Dictionary) Surface(id uint32) string {
	return d.surfaces[id]
}

func (d *Dictionary) Len() int {
	return len(d.surfaces)
}

// Restore re-creates a term with a known id when loading from the backing
// store. Ids must be restored in ascending dense order.
func (d *Dictionary) Restore(id uint32, surface string, df uint32) {
	for uint32(len(d.surfaces)) <= id {
		d.surfaces = append(d.surfaces, "")
		d.df = append(d.df, 0)
	}
	d.surfaces[id] = surface
	d.df[id] = df
	d.ids[surface] = id
	if id >= d.nextID {
		d.nextID = id + 1
	}
}
