package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
)

const maxJSONBody = 64 << 10

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	empty, err := decodeJSONAllowEmpty(w, r, dst)
	if err != nil {
		return err
	}
	if empty {
		return io.ErrUnexpectedEOF
	}
	return nil
}

// decodeJSONAllowEmpty treats a missing body as an empty object.
func decodeJSONAllowEmpty(w http.ResponseWriter, r *http.Request, dst any) (bool, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBody)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return true, nil
		}
		return false, err
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		if err == nil {
			return false, errors.New("multiple json values")
		}
		return false, err
	}
	return false, nil
}

func writeBadJSON(w http.ResponseWriter) {
	WriteError(w, http.StatusBadRequest, "bad_json", "invalid json")
}
