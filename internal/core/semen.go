package core

import (
	"context"
	"herdcore/pkg/domain"
	"strings"
	"time"
)

// SemenStrawInput registers one straw of AI inventory.
type SemenStrawInput struct {
	ID        string
	FarmerID  string
	Code      string
	SireBreed string
}

// RegisterSemenStraw adds a straw to the farmer's inventory. Codes are unique
// per farmer.
func (s *Service) RegisterSemenStraw(ctx context.Context, in SemenStrawInput) (SemenStraw, Result, error) {
	var created SemenStraw
	res, err := s.run(ctx, opRegisterSemenStraw, func(tx Transaction) (string, error) {
		farmerID, err := resolveFarmer(ctx, in.FarmerID)
		if err != nil {
			return "", err
		}
		code := strings.TrimSpace(in.Code)
		if code == "" {
			return "", domain.Invalid("code", "is required")
		}
		for _, other := range tx.ListSemenStraws() {
			if other.FarmerID == farmerID && other.Code == code {
				return "", domain.Conflict(domain.EntitySemenStraw, other.ID, "code %q already registered", code)
			}
		}
		created, err = tx.CreateSemenStraw(SemenStraw{
			Base:      domain.Base{ID: in.ID},
			FarmerID:  farmerID,
			Code:      code,
			SireBreed: strings.TrimSpace(in.SireBreed),
		})
		return created.ID, err
	})
	return created, res, err
}

// ListAvailableStraws returns the unused straws of a farmer. The bound farmer
// is used when farmerID is empty.
func (s *Service) ListAvailableStraws(ctx context.Context, farmerID string) ([]SemenStraw, error) {
	farmerID, err := resolveFarmer(ctx, farmerID)
	if err != nil {
		return nil, err
	}
	var out []SemenStraw
	err = s.view(ctx, func(view TransactionView) error {
		for _, straw := range view.ListSemenStraws() {
			if straw.FarmerID == farmerID && !straw.Used {
				out = append(out, straw)
			}
		}
		return nil
	})
	return out, err
}

// consumeStraw marks a straw used by an AI insemination of the dam's farmer.
func consumeStraw(tx Transaction, id, farmerID string, date time.Time) (SemenStraw, error) {
	straw, ok := tx.FindSemenStraw(id)
	if !ok || straw.FarmerID != farmerID {
		return SemenStraw{}, domain.NotFoundError{Entity: domain.EntitySemenStraw, ID: id}
	}
	if straw.Used {
		return SemenStraw{}, domain.Conflict(domain.EntitySemenStraw, id, "straw already used")
	}
	return tx.UpdateSemenStraw(id, func(st *SemenStraw) error {
		st.Used = true
		st.UsedAt = domain.DatePtr(date)
		return nil
	})
}
