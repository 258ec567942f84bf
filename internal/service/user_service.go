package service

import (
	"context"
	"errors"
	"strings"

	"nxfs_api/internal/domain"

	"github.com/google/uuid"
)

type UserStore interface {
	Create(ctx context.Context, u *domain.User) error
	GetByID(ctx context.Context, id int64) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	UpdateDisplayName(ctx context.Context, id int64, name string) error
}

type DeviceStore interface {
	Create(ctx context.Context, d *domain.Device) error
	ListByUser(ctx context.Context, userID int64, activeOnly bool) ([]*domain.Device, error)
	Touch(ctx context.Context, userID int64, id string) error
	Revoke(ctx context.Context, userID int64, id string) error
	RevokeAllExcept(ctx context.Context, userID int64, keepID string) (int64, error)
}

type UserService struct {
	users   UserStore
	devices DeviceStore
	events  Publisher
}

func NewUserService(users UserStore, devices DeviceStore, events Publisher) *UserService {
	return &UserService{users: users, devices: devices, events: publisherOrNop(events)}
}

func (s *UserService) Me(ctx context.Context, userID int64) (*domain.User, error) {
	return s.users.GetByID(ctx, userID)
}

func (s *UserService) UpdateDisplayName(ctx context.Context, userID int64, name string) (*domain.User, error) {
	name = domain.CapitalizeName(name)
	if len(name) > 150 {
		return nil, domain.NewValidationError("display_name", "Ensure this field has no more than 150 characters.")
	}
	if err := s.users.UpdateDisplayName(ctx, userID, name); err != nil {
		return nil, err
	}
	return s.users.GetByID(ctx, userID)
}

// EnsureUser returns the user with email, creating it when missing.
func (s *UserService) EnsureUser(ctx context.Context, email, displayName string, staff bool) (*domain.User, error) {
	email = strings.TrimSpace(email)
	if email == "" || !strings.Contains(email, "@") {
		return nil, domain.NewValidationError("email", "Enter a valid email address.")
	}
	u, err := s.users.GetByEmail(ctx, email)
	if err == nil {
		return u, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}
	u = &domain.User{Email: email, DisplayName: domain.CapitalizeName(displayName), IsStaff: staff}
	if err := s.users.Create(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}

type DeviceInput struct {
	DeviceType string `json:"device_type" binding:"required"`
	DeviceName string `json:"device_name" binding:"required,max=100"`
	PushToken  string `json:"push_token"`
}

func (s *UserService) RegisterDevice(ctx context.Context, userID int64, in DeviceInput) (*domain.Device, error) {
	in.DeviceType = strings.ToLower(strings.TrimSpace(in.DeviceType))
	if !domain.ValidDeviceType(in.DeviceType) {
		return nil, domain.NewValidationError("device_type", `"`+in.DeviceType+`" is not a valid choice.`)
	}
	d := &domain.Device{
		ID:         uuid.NewString(),
		UserID:     userID,
		DeviceType: in.DeviceType,
		DeviceName: strings.TrimSpace(in.DeviceName),
		PushToken:  in.PushToken,
	}
	if err := s.devices.Create(ctx, d); err != nil {
		return nil, err
	}
	return d, nil
}

func (s *UserService) Devices(ctx context.Context, userID int64, activeOnly bool) ([]*domain.Device, error) {
	return s.devices.ListByUser(ctx, userID, activeOnly)
}

func (s *UserService) TouchDevice(ctx context.Context, userID int64, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return domain.ErrNotFound
	}
	return s.devices.Touch(ctx, userID, id)
}

func (s *UserService) RevokeDevice(ctx context.Context, userID int64, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return domain.ErrNotFound
	}
	if err := s.devices.Revoke(ctx, userID, id); err != nil {
		return err
	}
	s.events.PublishToUser(userID, EventDevicesRevoked, map[string]any{"device_ids": []string{id}})
	return nil
}

// RevokeOthers deactivates every device of the user except currentID.
func (s *UserService) RevokeOthers(ctx context.Context, userID int64, currentID string) (int64, error) {
	if _, err := uuid.Parse(currentID); err != nil {
		return 0, domain.NewValidationError("current_device_id", "Must be a valid UUID.")
	}
	n, err := s.devices.RevokeAllExcept(ctx, userID, currentID)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		s.events.PublishToUser(userID, EventDevicesRevoked, map[string]any{"kept_device_id": currentID, "revoked_count": n})
	}
	return n, nil
}
