package domain

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"

	"github.com/SrSebald/Vitalia/internal/events"
)

const (
	minUsername = 3
	maxUsername = 30
)

// ProfileUpdate is a partial profile change; nil fields are left untouched.
type ProfileUpdate struct {
	FullName         *string          `json:"full_name"`
	Username         *string          `json:"username"`
	HeightCm         *decimal.Decimal `json:"height_cm"`
	WeightKg         *decimal.Decimal `json:"weight_kg"`
	DateOfBirth      *time.Time       `json:"date_of_birth"`
	BodyType         *string          `json:"body_type"`
	MainGoal         *string          `json:"main_goal"`
	GoalDeadline     *time.Time       `json:"goal_deadline"`
	Motivation       *string          `json:"motivation"`
	ActivityLevel    *string          `json:"activity_level"`
	HealthConditions *string          `json:"health_conditions"`
	Allergies        *[]string        `json:"allergies"`
	DietType         *string          `json:"diet_type"`
	MealSchedule     *string          `json:"meal_schedule"`
	FitnessGoals     *string          `json:"fitness_goals"`
}

// EnsureProfile returns the caller's profile, creating it on first use. It must be
// called inside the caller's unit of work.
func (s *Service) EnsureProfile(ctx context.Context, tx Tx, p Principal) (*Profile, error) {
	profiles := tx.Profiles()
	current, err := profiles.Current(ctx)
	if err != nil || current != nil {
		return current, err
	}

	now := s.clock()
	id := tx.Identity().UUID()
	profile := Profile{
		ID:         id,
		AuthUserID: id,
		FullName:   optionalString(p.FullName),
		Username:   usernameFromEmail(p.Email),
		Allergies:  []string{},
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	inserted, err := profiles.Insert(ctx, profile)
	if err != nil {
		return nil, err
	}
	if !inserted {
		// Either a concurrent request created the profile or the username is taken.
		if current, err = profiles.Current(ctx); err != nil || current != nil {
			return current, err
		}
		if profile.Username == nil {
			return nil, ErrConflict
		}
		profile.Username = nil
		if inserted, err = profiles.Insert(ctx, profile); err != nil {
			return nil, err
		}
		if !inserted {
			return nil, ErrConflict
		}
	}

	if err := record(ctx, tx, events.ProfileCreated, profile.ID.String(), events.ProfileCreatedPayload{
		ProfileID: profile.ID.String(),
		Username:  lo.FromPtr(profile.Username),
		CreatedAt: now,
	}); err != nil {
		return nil, err
	}
	s.logger.Debug("profile created")
	return &profile, nil
}

// GetProfile returns the caller's profile.
func (s *Service) GetProfile(ctx context.Context, p Principal) (*Profile, error) {
	var out *Profile
	err := s.store.Run(ctx, p.Identity, func(ctx context.Context, tx Tx) error {
		profile, err := s.EnsureProfile(ctx, tx, p)
		out = profile
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// UpdateProfile applies a partial update to the caller's profile.
func (s *Service) UpdateProfile(ctx context.Context, p Principal, in ProfileUpdate) (*Profile, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}

	var out *Profile
	err := s.store.Run(ctx, p.Identity, func(ctx context.Context, tx Tx) error {
		profile, err := s.EnsureProfile(ctx, tx, p)
		if err != nil {
			return err
		}
		updated := in.apply(*profile)
		updated.UpdatedAt = s.clock()
		if err := requireOne(tx.Profiles().Update(ctx, updated)); err != nil {
			return err
		}
		out = &updated
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (in ProfileUpdate) validate() error {
	if in.Username != nil {
		name := strings.TrimSpace(*in.Username)
		if n := utf8.RuneCountInString(name); n < minUsername || n > maxUsername {
			return invalid("username", "must be between 3 and 30 characters")
		}
	}
	if in.HeightCm != nil && !in.HeightCm.IsPositive() {
		return invalid("height_cm", "must be positive")
	}
	if in.WeightKg != nil && !in.WeightKg.IsPositive() {
		return invalid("weight_kg", "must be positive")
	}
	return nil
}

func (in ProfileUpdate) apply(p Profile) Profile {
	setString(&p.FullName, in.FullName)
	setString(&p.Username, in.Username)
	if in.HeightCm != nil {
		p.HeightCm = decimal.NewNullDecimal(*in.HeightCm)
	}
	if in.WeightKg != nil {
		p.WeightKg = decimal.NewNullDecimal(*in.WeightKg)
	}
	if in.DateOfBirth != nil {
		p.DateOfBirth = in.DateOfBirth
	}
	setString(&p.BodyType, in.BodyType)
	setString(&p.MainGoal, in.MainGoal)
	if in.GoalDeadline != nil {
		p.GoalDeadline = in.GoalDeadline
	}
	setString(&p.Motivation, in.Motivation)
	setString(&p.ActivityLevel, in.ActivityLevel)
	setString(&p.HealthConditions, in.HealthConditions)
	if in.Allergies != nil {
		p.Allergies = normalizeStrings(*in.Allergies)
	}
	setString(&p.DietType, in.DietType)
	setString(&p.MealSchedule, in.MealSchedule)
	setString(&p.FitnessGoals, in.FitnessGoals)
	return p
}

// setString replaces dst when src is given; a blank src clears the field.
func setString(dst **string, src *string) {
	if src == nil {
		return
	}
	*dst = optionalString(*src)
}

func optionalString(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

func usernameFromEmail(email string) *string {
	local, _, found := strings.Cut(strings.TrimSpace(email), "@")
	if !found {
		return nil
	}
	runes := []rune(strings.ToLower(local))
	if len(runes) > maxUsername {
		runes = runes[:maxUsername]
	}
	if len(runes) < minUsername {
		return nil
	}
	local = string(runes)
	return &local
}

func normalizeStrings(values []string) []string {
	trimmed := lo.Map(values, func(v string, _ int) string { return strings.TrimSpace(v) })
	return lo.Uniq(lo.Compact(trimmed))
}
