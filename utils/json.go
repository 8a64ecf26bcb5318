package utils

import (
	"encoding/json"
	"fmt"
	"os"

	"Folium/errors"
)

// Response is the envelope every --json command prints.
type Response struct {
	Status string      `json:"status"`
	Data   interface{} `json:"data,omitempty"`
	Error  string      `json:"error,omitempty"`
	Kind   string      `json:"kind,omitempty"`
}

// OutputJSON prints a response envelope to stdout. Errors carry their
// taxonomy kind when they have one, so machine consumers can branch on it.
func OutputJSON(status string, data interface{}, err error) {
	response := Response{
		Status: status,
	}

	if err != nil {
		response.Status = "error"
		response.Error = err.Error()
		if kind := errors.KindOf(err); kind != "" {
			response.Kind = string(kind)
		}
	} else if data != nil {
		response.Data = data
	}

	jsonData, jsonErr := json.Marshal(response)
	if jsonErr != nil {
		_, _ = fmt.Fprintf(os.Stderr, "Error marshaling JSON: %v\n", jsonErr)
		return
	}

	fmt.Println(string(jsonData))
}
