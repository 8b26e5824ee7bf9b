package domain

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/SrSebald/Vitalia/internal/events"
)

// Mood rating bounds.
const (
	MinMood = 1
	MaxMood = 5
)

// LogMealInput captures one consumed food item. A zero ConsumedAt means now.
type LogMealInput struct {
	ConsumedAt  time.Time        `json:"consumed_at"`
	MealType    *string          `json:"meal_type"`
	FoodItem    string           `json:"food_item"`
	ServingSize *string          `json:"serving_size"`
	Calories    *int             `json:"calories"`
	ProteinG    *decimal.Decimal `json:"protein_g"`
	CarbsG      *decimal.Decimal `json:"carbs_g"`
	FatG        *decimal.Decimal `json:"fat_g"`
	Notes       *string          `json:"notes"`
}

// LogMoodInput captures a mood rating.
type LogMoodInput struct {
	MoodRating int     `json:"mood_rating"`
	Notes      *string `json:"notes"`
}

// UpdateMoodInput is a partial mood log change.
type UpdateMoodInput struct {
	MoodRating *int    `json:"mood_rating"`
	Notes      *string `json:"notes"`
}

// AddPhotoInput references an uploaded progress photo.
type AddPhotoInput struct {
	ImageURL string     `json:"image_url"`
	Caption  *string    `json:"caption"`
	TakenOn  *time.Time `json:"taken_on"`
}

// LogMeal records a nutrition log for the caller.
func (s *Service) LogMeal(ctx context.Context, p Principal, in LogMealInput) (*NutritionLog, error) {
	food := strings.TrimSpace(in.FoodItem)
	if food == "" {
		return nil, invalid("food_item", "is required")
	}
	if in.Calories != nil && *in.Calories < 0 {
		return nil, invalid("calories", "must not be negative")
	}
	macros := []struct {
		field string
		value *decimal.Decimal
	}{{"protein_g", in.ProteinG}, {"carbs_g", in.CarbsG}, {"fat_g", in.FatG}}
	for _, m := range macros {
		if m.value != nil && m.value.IsNegative() {
			return nil, invalid(m.field, "must not be negative")
		}
	}

	var out *NutritionLog
	err := s.store.Run(ctx, p.Identity, func(ctx context.Context, tx Tx) error {
		profile, err := s.EnsureProfile(ctx, tx, p)
		if err != nil {
			return err
		}
		now := s.clock()
		consumed := in.ConsumedAt
		if consumed.IsZero() {
			consumed = now
		}
		n := NutritionLog{
			ID:          newID(),
			UserID:      profile.ID,
			ConsumedAt:  consumed.UTC(),
			MealType:    in.MealType,
			FoodItem:    food,
			ServingSize: in.ServingSize,
			Calories:    in.Calories,
			ProteinG:    nullDecimal(in.ProteinG),
			CarbsG:      nullDecimal(in.CarbsG),
			FatG:        nullDecimal(in.FatG),
			Notes:       in.Notes,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		if err := tx.NutritionLogs().Insert(ctx, n); err != nil {
			return err
		}
		if err := record(ctx, tx, events.NutritionLogged, n.ID.String(), events.NutritionLoggedPayload{
			NutritionLogID: n.ID.String(),
			FoodItem:       n.FoodItem,
			Calories:       n.Calories,
			ConsumedAt:     n.ConsumedAt,
		}); err != nil {
			return err
		}
		out = &n
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// ListNutritionLogs returns the caller's logs consumed in [from, to], oldest first.
func (s *Service) ListNutritionLogs(ctx context.Context, p Principal, from, to time.Time) ([]NutritionLog, error) {
	if !to.IsZero() && to.Before(from) {
		return nil, invalid("to", "must not be before from")
	}
	if to.IsZero() {
		to = s.clock()
	}
	var out []NutritionLog
	err := s.store.RunReadOnly(ctx, p.Identity, func(ctx context.Context, tx Tx) error {
		logs, err := tx.NutritionLogs().ListBetween(ctx, from.UTC(), to.UTC())
		out = logs
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// DeleteNutritionLog removes a nutrition log the caller owns.
func (s *Service) DeleteNutritionLog(ctx context.Context, p Principal, id uuid.UUID) error {
	return s.store.Run(ctx, p.Identity, func(ctx context.Context, tx Tx) error {
		return requireOne(tx.NutritionLogs().Delete(ctx, id))
	})
}

// LogMood records a mood rating between MinMood and MaxMood.
func (s *Service) LogMood(ctx context.Context, p Principal, in LogMoodInput) (*MoodLog, error) {
	if in.MoodRating < MinMood || in.MoodRating > MaxMood {
		return nil, invalid("mood_rating", "must be between 1 and 5")
	}

	var out *MoodLog
	err := s.store.Run(ctx, p.Identity, func(ctx context.Context, tx Tx) error {
		profile, err := s.EnsureProfile(ctx, tx, p)
		if err != nil {
			return err
		}
		m := MoodLog{
			UserID:     profile.ID,
			MoodRating: in.MoodRating,
			Notes:      in.Notes,
			LoggedAt:   s.clock(),
		}
		if err := tx.MoodLogs().Insert(ctx, &m); err != nil {
			return err
		}
		if err := record(ctx, tx, events.MoodLogged, strconv.FormatInt(m.ID, 10), events.MoodLoggedPayload{
			MoodLogID:  m.ID,
			MoodRating: m.MoodRating,
			LoggedAt:   m.LoggedAt,
		}); err != nil {
			return err
		}
		out = &m
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// ListMoodLogs returns the caller's latest mood logs.
func (s *Service) ListMoodLogs(ctx context.Context, p Principal, limit int) ([]MoodLog, error) {
	limit = clampLimit(limit)
	var out []MoodLog
	err := s.store.RunReadOnly(ctx, p.Identity, func(ctx context.Context, tx Tx) error {
		logs, err := tx.MoodLogs().ListRecent(ctx, limit)
		out = logs
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// UpdateMoodLog changes the rating or notes of a mood log the caller owns.
func (s *Service) UpdateMoodLog(ctx context.Context, p Principal, id int64, in UpdateMoodInput) (*MoodLog, error) {
	if in.MoodRating != nil && (*in.MoodRating < MinMood || *in.MoodRating > MaxMood) {
		return nil, invalid("mood_rating", "must be between 1 and 5")
	}

	var out *MoodLog
	err := s.store.Run(ctx, p.Identity, func(ctx context.Context, tx Tx) error {
		m, err := tx.MoodLogs().Get(ctx, id)
		if err != nil {
			return err
		}
		if in.MoodRating != nil {
			m.MoodRating = *in.MoodRating
		}
		setString(&m.Notes, in.Notes)
		if err := requireOne(tx.MoodLogs().Update(ctx, *m)); err != nil {
			return err
		}
		out = m
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// DeleteMoodLog removes a mood log the caller owns.
func (s *Service) DeleteMoodLog(ctx context.Context, p Principal, id int64) error {
	return s.store.Run(ctx, p.Identity, func(ctx context.Context, tx Tx) error {
		return requireOne(tx.MoodLogs().Delete(ctx, id))
	})
}

// AddProgressPhoto attaches a progress photo to the caller's profile.
func (s *Service) AddProgressPhoto(ctx context.Context, p Principal, in AddPhotoInput) (*ProgressPhoto, error) {
	url := strings.TrimSpace(in.ImageURL)
	if url == "" {
		return nil, invalid("image_url", "is required")
	}

	var out *ProgressPhoto
	err := s.store.Run(ctx, p.Identity, func(ctx context.Context, tx Tx) error {
		profile, err := s.EnsureProfile(ctx, tx, p)
		if err != nil {
			return err
		}
		now := s.clock()
		photo := ProgressPhoto{
			ID:        newID(),
			UserID:    profile.ID,
			ImageURL:  url,
			Caption:   in.Caption,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if in.TakenOn != nil {
			day := truncateDay(*in.TakenOn)
			photo.TakenOn = &day
		}
		if err := tx.ProgressPhotos().Insert(ctx, photo); err != nil {
			return err
		}
		taken := now
		if photo.TakenOn != nil {
			taken = *photo.TakenOn
		}
		if err := record(ctx, tx, events.PhotoAdded, photo.ID.String(), events.PhotoAddedPayload{
			PhotoID: photo.ID.String(),
			TakenOn: taken,
		}); err != nil {
			return err
		}
		out = &photo
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// ListProgressPhotos returns the caller's photos, newest first.
func (s *Service) ListProgressPhotos(ctx context.Context, p Principal, limit int) ([]ProgressPhoto, error) {
	limit = clampLimit(limit)
	var out []ProgressPhoto
	err := s.store.RunReadOnly(ctx, p.Identity, func(ctx context.Context, tx Tx) error {
		photos, err := tx.ProgressPhotos().List(ctx, limit)
		out = photos
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// DeleteProgressPhoto removes a photo the caller owns.
func (s *Service) DeleteProgressPhoto(ctx context.Context, p Principal, id uuid.UUID) error {
	return s.store.Run(ctx, p.Identity, func(ctx context.Context, tx Tx) error {
		return requireOne(tx.ProgressPhotos().Delete(ctx, id))
	})
}

func nullDecimal(d *decimal.Decimal) decimal.NullDecimal {
	if d == nil {
		return decimal.NullDecimal{}
	}
	return decimal.NewNullDecimal(*d)
}
