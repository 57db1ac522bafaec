package screen

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/kjstillabower/weather-lookup/internal/models"
	"github.com/kjstillabower/weather-lookup/internal/validation"
)

// State is the search component state.
type State int

const (
	StateIdle State = iota
	StateTyping
	StateSearching
	StateResultsShown
	StateErrorShown
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateTyping:
		return "typing"
	case StateSearching:
		return "searching"
	case StateResultsShown:
		return "results-shown"
	case StateErrorShown:
		return "error-shown"
	default:
		return "unknown"
	}
}

// DefaultMinChars is the shortest query that is sent to the geocoder.
const DefaultMinChars = 2

const (
	SearchPlaceholder = "Rechercher une ville..."
	MsgNetworkError   = "Erreur réseau"
	msgTooShort       = "Tape au moins %d caractères"
	msgTooLong        = "Maximum %d caractères"
	msgInvalidChars   = "Caractères non autorisés"
)

// Selection is what the search hands to its owner when a result is picked.
type Selection struct {
	Name      string
	Latitude  float64
	Longitude float64
}

// SearchOption configures a Search.
type SearchOption func(*Search)

// WithMinChars sets the minimum trimmed query length.
func WithMinChars(n int) SearchOption {
	return func(s *Search) {
		if n > 0 {
			s.minChars = n
		}
	}
}

// WithMaxChars sets the maximum trimmed query length; zero disables the bound.
func WithMaxChars(n int) SearchOption {
	return func(s *Search) { s.maxChars = n }
}

// WithOnSelect sets the selection callback.
func WithOnSelect(fn func(Selection)) SearchOption {
	return func(s *Search) { s.onSelect = fn }
}

// WithLogger sets the logger that receives search failure details.
func WithLogger(l *zap.Logger) SearchOption {
	return func(s *Search) {
		if l != nil {
			s.logger = l
		}
	}
}

// Search is the submit-driven city search component.
//
// Every text change, submit and selection starts a new generation and cancels the
// request of the previous one; a response is applied only if its generation is
// still current, so the last submitted search wins.
type Search struct {
	geocoder Geocoder
	minChars int
	maxChars int
	onSelect func(Selection)
	logger   *zap.Logger

	mu       sync.Mutex
	query    string
	state    State
	results  []models.GeoResult
	errMsg   string
	gen      uint64
	cancel   context.CancelFunc
	inFlight sync.WaitGroup
}

// NewSearch creates an idle search component.
func NewSearch(geocoder Geocoder, opts ...SearchOption) *Search {
	s := &Search{
		geocoder: geocoder,
		minChars: DefaultMinChars,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// advanceLocked starts a new generation and cancels the in-flight request, if any.
func (s *Search) advanceLocked() uint64 {
	s.gen++
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	return s.gen
}

// SetQuery replaces the query text and clears results, selection and error.
func (s *Search) SetQuery(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.advanceLocked()
	s.query = text
	s.state = StateTyping
	s.results = nil
	s.errMsg = ""
}

// Submit searches for the current query and blocks until the outcome is applied or
// superseded. Queries that fail validation never reach the geocoder.
func (s *Search) Submit(ctx context.Context) {
	s.mu.Lock()
	gen := s.advanceLocked()
	query, err := validation.ValidateQuery(s.query, s.minChars, s.maxChars)
	if err != nil {
		s.state = StateErrorShown
		s.results = nil
		s.errMsg = s.validationMessage(err)
		s.mu.Unlock()
		return
	}
	reqCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.state = StateSearching
	s.errMsg = ""
	s.inFlight.Add(1)
	s.mu.Unlock()

	defer s.inFlight.Done()
	defer cancel()

	results, err := s.geocoder.Search(reqCtx, query)

	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.gen {
		return
	}
	s.cancel = nil
	if err != nil {
		s.logger.Warn("search failed", zap.String("query", query), zap.Error(err))
		s.state = StateErrorShown
		s.results = nil
		s.errMsg = MsgNetworkError
		return
	}
	s.state = StateResultsShown
	s.results = results
}

func (s *Search) validationMessage(err error) string {
	switch {
	case errors.Is(err, validation.ErrQueryTooLong):
		return fmt.Sprintf(msgTooLong, s.maxChars)
	case errors.Is(err, validation.ErrQueryInvalidChars):
		return msgInvalidChars
	default:
		return fmt.Sprintf(msgTooShort, s.minChars)
	}
}

// Select picks the result with id: results are hidden, the query becomes the selected
// name and the selection callback runs. It reports false when no shown result has id.
func (s *Search) Select(id string) bool {
	s.mu.Lock()
	var picked *models.GeoResult
	for i := range s.results {
		if s.results[i].ID == id {
			r := s.results[i]
			picked = &r
			break
		}
	}
	if picked == nil {
		s.mu.Unlock()
		return false
	}
	s.advanceLocked()
	s.query = picked.Name
	s.state = StateIdle
	s.results = nil
	s.errMsg = ""
	onSelect := s.onSelect
	s.mu.Unlock()

	if onSelect != nil {
		onSelect(Selection{Name: picked.Name, Latitude: picked.Latitude, Longitude: picked.Longitude})
	}
	return true
}

// SelectIndex picks the i-th shown result (0-based).
func (s *Search) SelectIndex(i int) bool {
	s.mu.Lock()
	if i < 0 || i >= len(s.results) {
		s.mu.Unlock()
		return false
	}
	id := s.results[i].ID
	s.mu.Unlock()
	return s.Select(id)
}

// Close cancels any in-flight request and waits for it to return.
func (s *Search) Close() {
	s.mu.Lock()
	s.advanceLocked()
	if s.state == StateSearching {
		s.state = StateTyping
	}
	s.mu.Unlock()
	s.inFlight.Wait()
}

// State returns the current state.
func (s *Search) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Results returns a copy of the current results.
func (s *Search) Results() []models.GeoResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.GeoResult, len(s.results))
	copy(out, s.results)
	return out
}

// ResultView is one line of the result list.
type ResultView struct {
	ID       string
	Title    string
	Subtitle string
}

// SearchView is the renderable state of a Search.
type SearchView struct {
	Query       string
	Placeholder string
	State       string
	Loading     bool
	Error       string
	// ShowResults is false for an empty result list; the list is simply not drawn.
	ShowResults bool
	Results     []ResultView
}

// View snapshots the display state.
func (s *Search) View() SearchView {
	s.mu.Lock()
	defer s.mu.Unlock()
	v := SearchView{
		Query:       s.query,
		Placeholder: SearchPlaceholder,
		State:       s.state.String(),
		Loading:     s.state == StateSearching,
		Error:       s.errMsg,
		ShowResults: s.state == StateResultsShown && len(s.results) > 0,
	}
	for _, r := range s.results {
		v.Results = append(v.Results, ResultView{
			ID:       r.ID,
			Title:    ResultTitle(r),
			Subtitle: FormatCoordinates(r.Latitude, r.Longitude),
		})
	}
	return v
}
