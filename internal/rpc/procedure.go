package rpc

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"github.com/go-playground/validator"

	"github.com/magabrotheeeer/stable-manager/internal/http/response"
)

// Kind вид процедуры: запрос или изменение.
type Kind int

const (
	// KindQuery принимает GET с ?input= и POST.
	KindQuery Kind = iota
	// KindMutation принимает только POST.
	KindMutation
)

// Procedure зарегистрированная процедура.
type Procedure struct {
	Name  string
	Kind  Kind
	Chain Chain

	call func(ctx context.Context, v *validator.Validate, raw []byte) (any, error)
}

// Query объявляет процедуру-запрос.
func Query[In, Out any](name string, chain Chain, fn func(ctx context.Context, in In) (Out, error)) Procedure {
	return newProcedure(name, KindQuery, chain, fn)
}

// Mutation объявляет процедуру-изменение.
func Mutation[In, Out any](name string, chain Chain, fn func(ctx context.Context, in In) (Out, error)) Procedure {
	return newProcedure(name, KindMutation, chain, fn)
}

func newProcedure[In, Out any](name string, kind Kind, chain Chain,
	fn func(ctx context.Context, in In) (Out, error)) Procedure {
	return Procedure{
		Name:  name,
		Kind:  kind,
		Chain: chain,
		call: func(ctx context.Context, v *validator.Validate, raw []byte) (any, error) {
			in, err := decodeInput[In](v, raw)
			if err != nil {
				return nil, err
			}
			return fn(ctx, in)
		},
	}
}

// decodeInput разбирает и валидирует вход. Пустой вход даёт нулевое значение,
// которое тоже проходит валидацию.
func decodeInput[In any](v *validator.Validate, raw []byte) (In, error) {
	var in In
	if len(strings.TrimSpace(string(raw))) > 0 {
		if err := json.Unmarshal(raw, &in); err != nil {
			return in, NewError(CodeBadRequest, "invalid input")
		}
	}
	if err := v.Struct(in); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := response.ValidationMessages(verrs)
			return in, &Error{
				Code:    CodeBadRequest,
				Message: strings.Join(msgs, ", "),
				Data:    map[string]any{"fields": msgs},
			}
		}
		var invalid *validator.InvalidValidationError
		if !errors.As(err, &invalid) {
			return in, NewError(CodeBadRequest, "invalid input")
		}
	}
	return in, nil
}

// NoInput вход процедур без параметров.
type NoInput struct{}
