package services

import (
	"context"
	"errors"
	"runtime"
	"strings"
	"sync"

	"busussd/internal/domain"
	"busussd/internal/domain/models"
	"busussd/internal/repositories"
	"busussd/internal/utils"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/sync/errgroup"
)

var errPINMatched = errors.New("pin matched")

// OperatorAuth checks operator PINs against their bcrypt hashes. Attempts are
// rate limited per caller before any hash is compared.
type OperatorAuth struct {
	Store    repositories.Store
	Attempts *utils.LimiterStore
	Log      *zap.Logger

	registerMu sync.Mutex
}

// HashPIN returns the bcrypt hash stored for an operator PIN.
func HashPIN(pin string) (string, error) {
	pin = strings.TrimSpace(pin)
	if len(pin) < 4 {
		return "", domain.ValidationError{Field: "pin", Msg: "must be at least 4 characters"}
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(pin), bcrypt.DefaultCost)
	if err != nil {
		return "", domain.InternalError{Msg: "hash pin", Err: err}
	}
	return string(hash), nil
}

// matchPIN compares pin against every stored hash in parallel and returns the
// matching operator with the lowest list position.
func matchPIN(ctx context.Context, ops []models.Operator, pin string) (models.Operator, bool, error) {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))

	var mu sync.Mutex
	found := -1
	for i := range ops {
		if ops[i].PINHash == "" {
			continue
		}
		i := i
		g.Go(func() error {
			if gctx.Err() != nil {
				return nil
			}
			if bcrypt.CompareHashAndPassword([]byte(ops[i].PINHash), []byte(pin)) != nil {
				return nil
			}
			mu.Lock()
			if found < 0 || i < found {
				found = i
			}
			mu.Unlock()
			return errPINMatched
		})
	}
	if err := g.Wait(); err != nil && !errors.Is(err, errPINMatched) {
		return models.Operator{}, false, err
	}
	if found >= 0 {
		return ops[found], true, nil
	}
	if err := ctx.Err(); err != nil {
		return models.Operator{}, false, err
	}
	return models.Operator{}, false, nil
}

// Authenticate resolves the operator whose PIN matches. caller identifies the
// party making attempts (phone number or session key).
func (a *OperatorAuth) Authenticate(ctx context.Context, caller, pin string) (models.Operator, error) {
	if a.Attempts != nil && !a.Attempts.Allow(caller) {
		utils.LogEvent(ctx, a.Log, "operator", "login", "pin attempts throttled", zap.String("caller", caller))
		return models.Operator{}, domain.ValidationError{Field: "pin", Msg: "too many attempts", Err: domain.ErrTooManyAttempts}
	}

	pin = strings.TrimSpace(pin)
	if pin == "" {
		return models.Operator{}, domain.ValidationError{Field: "pin", Err: domain.ErrInvalidPIN}
	}

	ops, err := a.Store.ListOperators(ctx)
	if err != nil {
		return models.Operator{}, err
	}
	op, ok, err := matchPIN(ctx, ops, pin)
	if err != nil {
		return models.Operator{}, domain.InternalError{Msg: "compare pin", Err: err}
	}
	if ok {
		utils.LogEvent(ctx, a.Log, "operator", "login", "operator signed in", zap.Int64("operator_id", op.ID))
		return op, nil
	}
	utils.LogEvent(ctx, a.Log, "operator", "login", "invalid pin", zap.String("caller", caller))
	return models.Operator{}, domain.ValidationError{Field: "pin", Err: domain.ErrInvalidPIN}
}

// Register creates an operator. The PIN is the only login credential, so a
// PIN already held by another operator is refused.
func (a *OperatorAuth) Register(ctx context.Context, name, pin string) (models.Operator, error) {
	hash, err := HashPIN(pin)
	if err != nil {
		return models.Operator{}, err
	}

	a.registerMu.Lock()
	defer a.registerMu.Unlock()

	ops, err := a.Store.ListOperators(ctx)
	if err != nil {
		return models.Operator{}, err
	}
	_, taken, err := matchPIN(ctx, ops, strings.TrimSpace(pin))
	if err != nil {
		return models.Operator{}, domain.InternalError{Msg: "compare pin", Err: err}
	}
	if taken {
		return models.Operator{}, domain.ConflictError{Resource: "operator", Msg: "pin already in use", Err: domain.ErrPINInUse}
	}
	return a.Store.CreateOperator(ctx, name, hash)
}
