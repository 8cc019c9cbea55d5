package credits

import (
	"context"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/sandgallery/sandgallery-backend/pkg/db"
	"github.com/sandgallery/sandgallery-backend/pkg/db/models"
	"github.com/sandgallery/sandgallery-backend/pkg/enums"
	pkgerrors "github.com/sandgallery/sandgallery-backend/pkg/errors"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Service is the credit ledger.
type Service interface {
	Deduct(ctx context.Context, userID string, amount int, reason string) (*DeductResult, error)
	Provision(ctx context.Context, userID, email string) (*models.Account, error)
	Get(ctx context.Context, userID string) (*models.Account, error)
}

// DeductResult reports the outcome of a successful deduct. Bypassed accounts
// keep their balance.
type DeductResult struct {
	Charged  int  `json:"charged"`
	Balance  int  `json:"balance"`
	Bypassed bool `json:"bypassed"`
}

type service struct {
	repo          Repository
	tx            txRunner
	signupCredits int
}

type ServiceParams struct {
	Repo          Repository
	Tx            txRunner
	SignupCredits int
}

func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("credits repository required")
	}
	if params.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.SignupCredits < 0 {
		return nil, fmt.Errorf("signup credits must not be negative")
	}
	return &service{repo: params.Repo, tx: params.Tx, signupCredits: params.SignupCredits}, nil
}

func (s *service) Deduct(ctx context.Context, userID string, amount int, reason string) (*DeductResult, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}
	if amount <= 0 {
		return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "deduct amount must be positive, got %d", amount)
	}

	var result *DeductResult
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		account, err := repo.FindByID(ctx, userID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load account")
		}
		if account == nil {
			return pkgerrors.Newf(pkgerrors.CodeNotFound, "account %s not found", userID)
		}

		if account.Privileged() {
			result = &DeductResult{Balance: account.Credits, Bypassed: true}
			return repo.AppendTransaction(ctx, &models.CreditTransaction{
				AccountID:    userID,
				Amount:       amount,
				BalanceAfter: account.Credits,
				Reason:       reason,
				Bypassed:     true,
			})
		}

		if amount > account.Credits {
			return insufficient(account.Credits, amount)
		}

		ok, err := repo.DebitIfSufficient(ctx, userID, amount)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "debit account")
		}
		if !ok {
			// a concurrent deduct drained the balance after our read
			current, err := repo.FindByID(ctx, userID)
			if err != nil || current == nil {
				return insufficient(0, amount)
			}
			return insufficient(current.Credits, amount)
		}

		updated, err := repo.FindByID(ctx, userID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "reload account")
		}
		if updated == nil {
			return pkgerrors.Newf(pkgerrors.CodeNotFound, "account %s not found", userID)
		}

		if err := repo.AppendTransaction(ctx, &models.CreditTransaction{
			AccountID:    userID,
			Amount:       amount,
			BalanceAfter: updated.Credits,
			Reason:       reason,
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "journal deduct")
		}
		result = &DeductResult{Charged: amount, Balance: updated.Credits}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *service) Provision(ctx context.Context, userID, email string) (*models.Account, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}

	account, err := s.repo.FindByID(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load account")
	}
	if account != nil {
		return account, nil
	}

	account = &models.Account{
		ID:      userID,
		Email:   strings.TrimSpace(email),
		Credits: s.signupCredits,
		Role:    enums.AccountRoleStandard,
	}
	if err := s.repo.Create(ctx, account); err != nil {
		if !db.IsUniqueViolation(err, "") {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create account")
		}
		// lost a provisioning race; the other request created it
		existing, findErr := s.repo.FindByID(ctx, userID)
		if findErr != nil || existing == nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create account")
		}
		return existing, nil
	}
	return account, nil
}

func (s *service) Get(ctx context.Context, userID string) (*models.Account, error) {
	account, err := s.repo.FindByID(ctx, strings.TrimSpace(userID))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load account")
	}
	if account == nil {
		return nil, pkgerrors.Newf(pkgerrors.CodeNotFound, "account %s not found", userID)
	}
	return account, nil
}

func insufficient(balance, cost int) error {
	return pkgerrors.Newf(pkgerrors.CodeInsufficientCredits, "balance %d, cost %d", balance, cost).
		WithDetails(map[string]int{"balance": balance, "cost": cost})
}
