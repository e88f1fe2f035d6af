package assessment

import (
	"context"
	"errors"
	"os"
	"strings"

	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-caps-intake/internal/apperr"
	"github.com/ovaphlow/pitchfork/service-caps-intake/internal/assessment/entity"
	"github.com/ovaphlow/pitchfork/service-caps-intake/internal/assessment/repo"
)

// Config carries the clinic header stamped on every new record.
type Config struct {
	City  string
	State string
}

// ConfigFromEnv reads CLINIC_CITY / CLINIC_STATE.
func ConfigFromEnv() Config {
	cfg := Config{City: os.Getenv("CLINIC_CITY"), State: os.Getenv("CLINIC_STATE")}
	if cfg.City == "" {
		cfg.City = "Angicos"
	}
	if cfg.State == "" {
		cfg.State = "RN"
	}
	return cfg
}

// Service orchestrates the assessment lifecycle on top of a Repository.
type Service struct {
	repo   repo.Repository
	cfg    Config
	logger *zap.SugaredLogger
}

func NewService(r repo.Repository, cfg Config, logger *zap.SugaredLogger) *Service {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Service{repo: r, cfg: cfg, logger: logger}
}

// prepare validates a bundle and returns a normalised private copy.
func prepare(f entity.Fields) (entity.Fields, error) {
	f = f.Clone()
	f.Normalize()
	if err := f.Validate(); err != nil {
		return entity.Fields{}, err
	}
	return f, nil
}

// Create validates the bundle, derives BMI and stores a new record.
func (s *Service) Create(ctx context.Context, f entity.Fields) (int64, error) {
	f, err := prepare(f)
	if err != nil {
		return 0, err
	}
	a := &entity.Assessment{
		City:   s.cfg.City,
		State:  s.cfg.State,
		Fields: f,
		BMI:    entity.ComputeBMI(f.WeightKg, f.HeightM),
	}
	id, err := s.repo.Create(ctx, a)
	if err != nil {
		return 0, err
	}
	s.logger.Infow("assessment created", "id", id, "created_date", f.CreatedDate.String())
	return id, nil
}

// Update replaces every field of record id with f. City and state keep the
// values stamped at creation.
func (s *Service) Update(ctx context.Context, id int64, f entity.Fields) error {
	f, err := prepare(f)
	if err != nil {
		return err
	}
	existing, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	a := &entity.Assessment{
		ID:     id,
		City:   existing.City,
		State:  existing.State,
		Fields: f,
		BMI:    entity.ComputeBMI(f.WeightKg, f.HeightM),
	}
	if err := s.repo.Update(ctx, a); err != nil {
		return err
	}
	s.logger.Infow("assessment updated", "id", id)
	return nil
}

// Delete removes record id. It is irreversible.
func (s *Service) Delete(ctx context.Context, id int64) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.logger.Infow("assessment deleted", "id", id)
	return nil
}

func (s *Service) Get(ctx context.Context, id int64) (*entity.Assessment, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) List(ctx context.Context) ([]*entity.Assessment, error) {
	return s.repo.List(ctx)
}

// FilterByName keeps records whose patient name contains q, ignoring case.
// An empty q returns everything.
func (s *Service) FilterByName(ctx context.Context, q string) ([]*entity.Assessment, error) {
	all, err := s.repo.List(ctx)
	if err != nil {
		return nil, err
	}
	return FilterByName(all, q), nil
}

// FilterByName is the pure filter behind Service.FilterByName.
func FilterByName(in []*entity.Assessment, q string) []*entity.Assessment {
	q = strings.ToLower(strings.TrimSpace(q))
	if q == "" {
		return in
	}
	out := make([]*entity.Assessment, 0, len(in))
	for _, a := range in {
		if strings.Contains(strings.ToLower(a.PatientName), q) {
			out = append(out, a)
		}
	}
	return out
}

// FindByNameAndDate resolves a (patient name, creation date) selection.
func (s *Service) FindByNameAndDate(ctx context.Context, name string, date entity.Date) (*entity.Assessment, error) {
	if strings.TrimSpace(name) == "" || date.IsZero() {
		return nil, apperr.Validation("name and date are required")
	}
	return s.repo.FindByNameAndDate(ctx, name, date)
}

// PatientNames lists distinct patient names in store order.
func (s *Service) PatientNames(ctx context.Context) ([]string, error) {
	all, err := s.repo.List(ctx)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]bool, len(all))
	names := make([]string, 0, len(all))
	for _, a := range all {
		if !seen[a.PatientName] {
			seen[a.PatientName] = true
			names = append(names, a.PatientName)
		}
	}
	return names, nil
}

// DatesForPatient lists the distinct creation dates of one patient's records.
func (s *Service) DatesForPatient(ctx context.Context, name string) ([]entity.Date, error) {
	all, err := s.repo.List(ctx)
	if err != nil {
		return nil, err
	}
	seen := map[string]bool{}
	var dates []entity.Date
	for _, a := range all {
		if a.PatientName != name || seen[a.CreatedDate.String()] {
			continue
		}
		seen[a.CreatedDate.String()] = true
		dates = append(dates, a.CreatedDate)
	}
	if len(dates) == 0 {
		return nil, apperr.ErrNotFound
	}
	return dates, nil
}

// IsNotFound reports whether err is the not-found outcome.
func IsNotFound(err error) bool { return errors.Is(err, apperr.ErrNotFound) }
