// Package form holds the state of one booking search form: canonical values, the
// strings shown in the inputs, and per-field validation errors.
package form

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/dharmasatrya/storefront/internal/dates"
	"github.com/dharmasatrya/storefront/internal/models"
	"github.com/dharmasatrya/storefront/internal/storage"
)

type Field string

const (
	FieldOrigin        Field = "origin"
	FieldDestination   Field = "destination"
	FieldDepartureDate Field = "departureDate"
	FieldTravelers     Field = "travelers"
)

var Fields = []Field{FieldOrigin, FieldDestination, FieldDepartureDate, FieldTravelers}

var ErrUnknownField = errors.New("unknown form field")

// Values are the canonical field values, also what gets stored as previous values.
type Values struct {
	Origin        string                 `json:"ciudadOrigen,omitempty"`
	Destination   string                 `json:"destino,omitempty"`
	DepartureDate *time.Time             `json:"fechaSalida,omitempty"`
	Travelers     *models.TravelerCounts `json:"viajeros,omitempty"`
}

// Display holds what the inputs show. It may lag behind Values while the user types.
type Display struct {
	Origin        string `json:"ciudadOrigenDisplay"`
	Destination   string `json:"destinoDisplay"`
	DepartureDate string `json:"fechaSalidaDisplay"`
	Travelers     string `json:"viajerosDisplay"`
}

type Snapshot struct {
	Values  Values           `json:"values"`
	Display Display          `json:"display"`
	Errors  map[Field]string `json:"errors"`
	Valid   bool             `json:"valid"`
}

type Store struct {
	mu       sync.Mutex
	values   Values
	display  Display
	errors   map[Field]string
	previous *storage.Slot[Values]
	loc      *time.Location
	hydrated bool
	logger   *zap.Logger
}

func NewStore(previous *storage.Slot[Values], loc *time.Location, logger *zap.Logger) *Store {
	if loc == nil {
		loc = dates.ART
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{
		errors:   make(map[Field]string),
		previous: previous,
		loc:      loc,
		logger:   logger.Named("form"),
	}
}

func (s *Store) SetOrigin(value string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values.Origin = strings.TrimSpace(value)
	s.display.Origin = s.values.Origin
	s.revalidate(FieldOrigin)
}

func (s *Store) SetDestination(value string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values.Destination = strings.TrimSpace(value)
	s.display.Destination = s.values.Destination
	s.revalidate(FieldDestination)
}

// SelectPlace is what picking a lookup candidate does: the label becomes both the
// canonical value and the displayed text.
func (s *Store) SelectPlace(field Field, place models.Place) error {
	switch field {
	case FieldOrigin:
		s.SetOrigin(place.Label())
	case FieldDestination:
		s.SetDestination(place.Label())
	default:
		return fmt.Errorf("%w: %s", ErrUnknownField, field)
	}
	return nil
}

func (s *Store) SetDepartureDate(value *time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.setDate(value)
	s.revalidate(FieldDepartureDate)
}

func (s *Store) SetTravelerCounts(adults, minors int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.setTravelers(models.TravelerCounts{Adults: max(adults, 0), Minors: max(minors, 0)})
	s.revalidate(FieldTravelers)
}

// SetDisplay records typed text without touching the canonical value.
func (s *Store) SetDisplay(field Field, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch field {
	case FieldOrigin:
		s.display.Origin = text
	case FieldDestination:
		s.display.Destination = text
	case FieldDepartureDate:
		s.display.DepartureDate = text
	case FieldTravelers:
		s.display.Travelers = text
	default:
		return fmt.Errorf("%w: %s", ErrUnknownField, field)
	}
	return nil
}

// Blur reconciles the displayed text with the canonical value of field and validates it.
func (s *Store) Blur(field Field) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch field {
	case FieldOrigin:
		if s.values.Origin != "" {
			s.display.Origin = s.values.Origin
			s.validate(FieldOrigin, s.values.Origin)
		}
	case FieldDestination:
		if s.values.Destination != "" {
			s.display.Destination = s.values.Destination
			s.validate(FieldDestination, s.values.Destination)
		}
	case FieldDepartureDate:
		text := strings.TrimSpace(s.display.DepartureDate)
		if text == "" {
			s.setDate(nil)
			return nil
		}
		if t, err := dates.Parse(text, s.loc); err == nil {
			s.setDate(&t)
		}
		s.validate(FieldDepartureDate, text)
	case FieldTravelers:
		s.setTravelers(s.travelers())
		s.validate(FieldTravelers, s.travelers())
	default:
		return fmt.Errorf("%w: %s", ErrUnknownField, field)
	}
	return nil
}

// ValidateField checks value for field and records the outcome. Accepted values are
// strings for origin and destination, a string or time for the date, and traveler
// counts for travelers.
func (s *Store) ValidateField(field Field, value any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.validate(field, value)
}

func (s *Store) IsValid() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.errors) == 0
}

// Submit validates every field and reports whether the search may proceed. It does no
// network I/O; on success the values are remembered for the next visit.
func (s *Store) Submit(ctx context.Context) bool {
	s.mu.Lock()
	s.validate(FieldOrigin, s.values.Origin)
	s.validate(FieldDestination, s.values.Destination)
	s.validate(FieldDepartureDate, s.values.DepartureDate)
	s.validate(FieldTravelers, s.travelers())
	ok := len(s.errors) == 0
	values := s.values
	s.mu.Unlock()

	if ok && s.previous != nil {
		if err := s.previous.Persist(ctx, values); err != nil {
			s.logger.Warn("failed to persist previous values", zap.Error(err))
		}
	}
	return ok
}

// Hydrate fills empty fields from the previous values. Only the first call per store
// does anything.
func (s *Store) Hydrate(ctx context.Context) {
	s.mu.Lock()
	if s.hydrated {
		s.mu.Unlock()
		return
	}
	s.hydrated = true
	s.mu.Unlock()

	var prev Values
	var found bool
	if s.previous != nil {
		var err error
		prev, found, err = s.previous.LoadPrevious(ctx)
		if err != nil {
			s.logger.Warn("failed to load previous values", zap.Error(err))
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	switch {
	case s.values.Origin == "" && s.display.Origin == "" && found && prev.Origin != "":
		s.values.Origin = prev.Origin
		s.display.Origin = prev.Origin
	case s.values.Origin != "" && s.display.Origin == "":
		s.display.Origin = s.values.Origin
	}

	switch {
	case s.values.Destination == "" && s.display.Destination == "" && found && prev.Destination != "":
		s.values.Destination = prev.Destination
		s.display.Destination = prev.Destination
	case s.values.Destination != "" && s.display.Destination == "":
		s.display.Destination = s.values.Destination
	}

	switch {
	case s.values.DepartureDate == nil && found && prev.DepartureDate != nil:
		s.setDate(prev.DepartureDate)
	case s.values.DepartureDate != nil && s.display.DepartureDate == "":
		s.display.DepartureDate = dates.Display(*s.values.DepartureDate)
	}

	switch {
	case s.values.Travelers.IsZero() && found && !prev.Travelers.IsZero():
		s.setTravelers(*prev.Travelers)
	case s.values.Travelers != nil && s.display.Travelers == "":
		s.display.Travelers = TravelerSummary(*s.values.Travelers)
	}
}

// Filters maps the canonical values onto search filters; page fields are left to the
// results client.
func (s *Store) Filters() models.SearchFilters {
	s.mu.Lock()
	defer s.mu.Unlock()

	f := models.SearchFilters{
		Origin:      s.values.Origin,
		Destination: s.values.Destination,
	}
	if s.values.DepartureDate != nil {
		d := *s.values.DepartureDate
		f.DepartureDate = &d
	}
	if s.values.Travelers != nil {
		t := *s.values.Travelers
		f.Travelers = &t
	}
	return f
}

func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values = Values{}
	s.display = Display{}
	s.errors = make(map[Field]string)
}

func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	errs := make(map[Field]string, len(s.errors))
	for k, v := range s.errors {
		errs[k] = v
	}
	values := s.values
	if values.DepartureDate != nil {
		d := *values.DepartureDate
		values.DepartureDate = &d
	}
	if values.Travelers != nil {
		t := *values.Travelers
		values.Travelers = &t
	}
	return Snapshot{
		Values:  values,
		Display: s.display,
		Errors:  errs,
		Valid:   len(errs) == 0,
	}
}

func (s *Store) setDate(value *time.Time) {
	if value == nil || value.IsZero() {
		s.values.DepartureDate = nil
		s.display.DepartureDate = ""
		return
	}
	d := dates.Day(value.In(s.loc))
	s.values.DepartureDate = &d
	s.display.DepartureDate = dates.Display(d)
}

func (s *Store) setTravelers(t models.TravelerCounts) {
	s.values.Travelers = &t
	s.display.Travelers = TravelerSummary(t)
}

func (s *Store) travelers() models.TravelerCounts {
	if s.values.Travelers == nil {
		return models.TravelerCounts{}
	}
	return *s.values.Travelers
}

// revalidate refreshes an existing error so it clears once the value is fixed.
func (s *Store) revalidate(field Field) {
	if _, ok := s.errors[field]; !ok {
		return
	}
	switch field {
	case FieldOrigin:
		s.validate(field, s.values.Origin)
	case FieldDestination:
		s.validate(field, s.values.Destination)
	case FieldDepartureDate:
		s.validate(field, s.values.DepartureDate)
	case FieldTravelers:
		s.validate(field, s.travelers())
	}
}

func (s *Store) validate(field Field, value any) error {
	var err error
	switch field {
	case FieldOrigin:
		err = validatePlace(value, models.ErrMissingOrigin)
	case FieldDestination:
		err = validatePlace(value, models.ErrMissingDestination)
	case FieldDepartureDate:
		err = validateDate(value, s.loc)
	case FieldTravelers:
		err = validateTravelers(value)
	default:
		return fmt.Errorf("%w: %s", ErrUnknownField, field)
	}

	if err != nil {
		s.errors[field] = err.Error()
	} else {
		delete(s.errors, field)
	}
	return err
}

func validatePlace(value any, missing models.ValidationError) error {
	v, _ := value.(string)
	if strings.TrimSpace(v) == "" {
		return missing
	}
	return nil
}

func validateDate(value any, loc *time.Location) error {
	switch v := value.(type) {
	case time.Time:
		if v.IsZero() {
			return models.ErrMissingDepartureDate
		}
	case *time.Time:
		if v == nil || v.IsZero() {
			return models.ErrMissingDepartureDate
		}
	case string:
		if strings.TrimSpace(v) == "" {
			return models.ErrMissingDepartureDate
		}
		if _, err := dates.Parse(v, loc); err != nil {
			return models.ErrInvalidDepartureDate
		}
	default:
		return models.ErrMissingDepartureDate
	}
	return nil
}

func validateTravelers(value any) error {
	var t models.TravelerCounts
	switch v := value.(type) {
	case models.TravelerCounts:
		t = v
	case *models.TravelerCounts:
		if v != nil {
			t = *v
		}
	}
	if t.Adults < 1 {
		return models.ErrMissingAdult
	}
	return nil
}

// TravelerSummary is the text of the travelers input, e.g. "2 adultos y 1 menor".
func TravelerSummary(t models.TravelerCounts) string {
	summary := fmt.Sprintf("%d adulto%s", t.Adults, plural(t.Adults, "s"))
	if t.Minors > 0 {
		summary += fmt.Sprintf(" y %d menor%s", t.Minors, plural(t.Minors, "es"))
	}
	return summary
}

func plural(n int, suffix string) string {
	if n == 1 {
		return ""
	}
	return suffix
}
