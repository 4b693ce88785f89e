package pending

// SetIDSource overrides ticket id generation, for tests.
func (s *Store) SetIDSource(f func() string) { s.newID = f }
