package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/example/ec-order-core/internal/domain/notification"
	"github.com/example/ec-order-core/internal/domain/order"
	"github.com/example/ec-order-core/internal/domain/payment"
	"github.com/example/ec-order-core/internal/infrastructure/logger"
)

const maxBodyBytes = 1 << 20

type errorResponse struct {
	Error   string   `json:"error"`
	Details []string `json:"details,omitempty"`
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string, details ...string) {
	respondJSON(w, status, errorResponse{Error: message, Details: details})
}

// writeError maps domain errors to HTTP responses. Unclassified errors are
// logged and reported as a generic 500.
func writeError(w http.ResponseWriter, log *logger.Logger, err error) {
	var verr *order.ValidationError
	var terr *order.TransitionError

	switch {
	case errors.As(err, &verr):
		respondError(w, http.StatusBadRequest, verr.Message, verr.Fields...)
	case errors.As(err, &terr):
		allowed := make([]string, len(terr.Allowed))
		for i, s := range terr.Allowed {
			allowed[i] = string(s)
		}
		respondError(w, http.StatusBadRequest, terr.Error(), allowed...)
	case errors.Is(err, order.ErrNotFound), errors.Is(err, notification.ErrNotFound):
		respondError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, order.ErrForbidden):
		respondError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, order.ErrInvalidState),
		errors.Is(err, order.ErrAlreadyConfirmed),
		errors.Is(err, payment.ErrAlreadyProcessing),
		errors.Is(err, payment.ErrOrderNotPayable):
		respondError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, payment.ErrGateway):
		log.Warn("payment gateway error", "error", err)
		respondError(w, http.StatusBadGateway, "payment gateway unavailable, please try again")
	default:
		log.Error("unhandled error", "error", err)
		respondError(w, http.StatusInternalServerError, "internal server error")
	}
}

// decodeJSON reads a JSON request body into v. Type mismatches, such as a
// string where a boolean is expected, become validation errors naming the
// offending field.
func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.UseNumber()
	if err := dec.Decode(v); err != nil {
		var typeErr *json.UnmarshalTypeError
		var syntaxErr *json.SyntaxError
		switch {
		case errors.As(err, &typeErr):
			field := typeErr.Field
			if field == "" {
				field = "body"
			}
			return &order.ValidationError{
				Message: fmt.Sprintf("%s must be a %s", field, jsonKind(typeErr.Type.Kind().String())),
				Fields:  []string{field},
			}
		case errors.As(err, &syntaxErr), errors.Is(err, io.ErrUnexpectedEOF):
			return &order.ValidationError{Message: "malformed JSON body"}
		case errors.Is(err, io.EOF):
			return &order.ValidationError{Message: "request body is required"}
		default:
			// decimal.Decimal reports bad numbers through its own UnmarshalJSON.
			if strings.Contains(err.Error(), "decimal") {
				return &order.ValidationError{Message: "invalid number in request body"}
			}
			return &order.ValidationError{Message: "invalid request body"}
		}
	}
	return nil
}

func jsonKind(kind string) string {
	switch kind {
	case "bool":
		return "boolean"
	case "int", "int64", "float64":
		return "number"
	case "slice":
		return "list"
	case "struct", "map", "ptr":
		return "object"
	}
	return kind
}
