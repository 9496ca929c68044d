// Package service реализует бизнес-логику сервиса учёта расходов.
package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/mmeshcher/expense-tracker/internal/model"
	"github.com/mmeshcher/expense-tracker/internal/repository"
)

// ErrInvalidCredentials возвращается при неверной паре email и пароль.
var ErrInvalidCredentials = errors.New("invalid credentials")

// Repository описывает контракт доступа к данным, используемый сервисом.
type Repository interface {
	Close() error
	CreateUser(ctx context.Context, name, email string, passwordHash []byte) (bool, error)
	GetUserByEmail(ctx context.Context, email string) (*model.User, error)
	ListCustomers(ctx context.Context) ([]model.Customer, error)
	InsertInvoice(ctx context.Context, inv model.Invoice) (bool, error)
	UpdateInvoice(ctx context.Context, id string, f model.InvoiceFields) error
	DeleteInvoice(ctx context.Context, id string) error
	GetInvoice(ctx context.Context, id string) (*model.Invoice, error)
	ListInvoices(ctx context.Context) ([]model.InvoiceView, error)
}

// Validator проверяет поля формы счёта.
type Validator interface {
	Validate(form model.InvoiceForm) (model.InvoiceFields, error)
}

// ListCache кэширует представление списка счетов.
type ListCache interface {
	Fetch(ctx context.Context, dest any, loader func(context.Context) (any, error)) error
	Invalidate(ctx context.Context) error
}

// Service содержит бизнес-логику сервиса учёта расходов.
type Service struct {
	repo      Repository
	validator Validator
	cache     ListCache
	logger    *zap.Logger

	now   func() time.Time
	newID func() string
}

// NewService создаёт новый сервис. Кэш может быть nil.
func NewService(repo Repository, v Validator, cache ListCache, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		repo:      repo,
		validator: v,
		cache:     cache,
		logger:    logger,
		now:       time.Now,
		newID:     uuid.NewString,
	}
}

// Close закрывает ресурсы сервиса.
func (s *Service) Close() error {
	if s.repo != nil {
		return s.repo.Close()
	}
	return nil
}

// EnsureUser создаёт пользователя с указанным паролем, если его ещё нет.
func (s *Service) EnsureUser(ctx context.Context, name, email, password string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}

	created, err := s.repo.CreateUser(ctx, name, email, hash)
	if err != nil {
		return err
	}
	if created {
		s.logger.Info("user created", zap.String("email", email))
	}
	return nil
}

// Authenticate проверяет email и пароль и возвращает идентификатор пользователя.
// Неизвестный пользователь и неверный пароль дают ErrInvalidCredentials, прочие ошибки возвращаются как есть.
func (s *Service) Authenticate(ctx context.Context, email, password string) (int64, error) {
	u, err := s.repo.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return 0, ErrInvalidCredentials
		}
		return 0, err
	}

	if err := bcrypt.CompareHashAndPassword(u.PasswordHash, []byte(password)); err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return 0, ErrInvalidCredentials
		}
		return 0, err
	}

	return u.ID, nil
}

// ListCustomers возвращает клиентов для выбора в форме.
func (s *Service) ListCustomers(ctx context.Context) ([]model.Customer, error) {
	return s.repo.ListCustomers(ctx)
}

// GetInvoice возвращает счёт для формы редактирования.
func (s *Service) GetInvoice(ctx context.Context, id string) (*model.Invoice, error) {
	return s.repo.GetInvoice(ctx, id)
}

// ListInvoices возвращает список счетов, используя кэш при его наличии.
func (s *Service) ListInvoices(ctx context.Context) ([]model.InvoiceView, error) {
	if s.cache == nil {
		return s.repo.ListInvoices(ctx)
	}

	var (
		res     []model.InvoiceView
		loaded  []model.InvoiceView
		loadRan bool
		loadErr error
	)
	err := s.cache.Fetch(ctx, &res, func(ctx context.Context) (any, error) {
		loadRan = true
		loaded, loadErr = s.repo.ListInvoices(ctx)
		return loaded, loadErr
	})
	if loadErr != nil {
		return nil, loadErr
	}
	if err != nil {
		s.logger.Warn("invoice list cache unavailable", zap.Error(err))
		// строки уже прочитаны, не удалось только записать их в кэш
		if loadRan {
			return loaded, nil
		}
		return s.repo.ListInvoices(ctx)
	}
	return res, nil
}

// invalidateList помечает кэш списка устаревшим. Ошибка инвалидации не влияет на результат операции.
func (s *Service) invalidateList(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx); err != nil {
		s.logger.Warn("invalidate invoice list", zap.Error(err))
	}
}
