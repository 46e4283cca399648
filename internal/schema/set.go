package schema

// Set is a flat collection of named schema definitions. Names are unique and
// kept in the order they were first added.
type Set struct {
	defs *Object
}

func NewSet() *Set {
	return &Set{defs: NewObject()}
}

func (s *Set) Len() int {
	return s.defs.Len()
}

// Names returns a copy of the definition names in insertion order.
func (s *Set) Names() []string {
	return s.defs.Keys()
}

func (s *Set) Get(name string) (*Value, bool) {
	return s.defs.Get(name)
}

// Put stores a definition. A name that is already present is overwritten in
// place.
func (s *Set) Put(name string, v *Value) {
	s.defs.Set(name, v)
}

// Merge adds every definition of other. Definitions of other win over
// existing names.
func (s *Set) Merge(other *Set) {
	other.defs.Range(func(name string, v *Value) bool {
		s.Put(name, v)
		return true
	})
}

// Normalize applies Normalize to every definition of the set.
func (s *Set) Normalize() {
	s.defs.Range(func(_ string, v *Value) bool {
		Normalize(v)
		return true
	})
}

func (s *Set) DeepCopy() *Set {
	return &Set{defs: s.defs.DeepCopy()}
}

func (s *Set) MarshalJSON() ([]byte, error) {
	return s.defs.MarshalJSON()
}

func (s *Set) UnmarshalJSON(data []byte) error {
	defs := NewObject()
	if err := defs.UnmarshalJSON(data); err != nil {
		return err
	}
	s.defs = defs
	return nil
}
