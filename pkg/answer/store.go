package answer

// Store holds the answers of one inference run. It is not safe for
// concurrent use; each run owns its own Store.
type Store struct {
	answers map[string]Answer
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{answers: make(map[string]Answer)}
}

// Get returns the answer for id.
func (s *Store) Get(id string) (Answer, bool) {
	a, ok := s.answers[id]
	return a, ok
}

// Has reports whether id has an answer.
func (s *Store) Has(id string) bool {
	_, ok := s.answers[id]
	return ok
}

// Put records a, replacing any previous answer for the same question.
func (s *Store) Put(a Answer) {
	s.answers[a.QuestionID] = a
}

// PutIfAbsent records a unless the question is already answered and
// reports whether it was stored.
func (s *Store) PutIfAbsent(a Answer) bool {
	if s.Has(a.QuestionID) {
		return false
	}
	s.answers[a.QuestionID] = a
	return true
}

// Len returns the number of answered questions.
func (s *Store) Len() int {
	return len(s.answers)
}

// Ordered returns the answers for ids in the given order, skipping ids
// without an answer.
func (s *Store) Ordered(ids []string) []Answer {
	out := make([]Answer, 0, len(ids))
	for _, id := range ids {
		if a, ok := s.answers[id]; ok {
			out = append(out, a)
		}
	}
	return out
}

// All returns every answer in unspecified order.
func (s *Store) All() []Answer {
	out := make([]Answer, 0, len(s.answers))
	for _, a := range s.answers {
		out = append(out, a)
	}
	return out
}
