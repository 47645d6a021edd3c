package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/marmos91/dittodocs/pkg/document"
	"github.com/marmos91/dittodocs/pkg/file"
	"github.com/spf13/cobra"
)

// printJSON writes v as indented JSON. A nil v prints "null": the store
// returns nil for hidden or missing files and for logged remote failures.
func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// addressArgs parses "<document> [path]".
func addressArgs(args []string) (file.Address, error) {
	if err := document.ValidateID(args[0]); err != nil {
		return file.Address{}, err
	}
	a := file.RootAddress(args[0])
	if len(args) > 1 {
		a.Path = args[1]
	}
	return a, nil
}

// readPayload returns the --data value, the content of --file ("-" reads
// stdin), or nil when neither is set.
func readPayload(cmd *cobra.Command, data, path string) ([]byte, error) {
	switch {
	case data != "" && path != "":
		return nil, fmt.Errorf("--data and --file are mutually exclusive")
	case data != "":
		return []byte(data), nil
	case path == "-":
		return io.ReadAll(cmd.InOrStdin())
	case path != "":
		return os.ReadFile(path)
	}
	return nil, nil
}

// payloadOf builds the typed payload of a file from raw input.
func payloadOf(t file.Type, raw []byte) (file.Data, error) {
	switch t {
	case file.TypeDirectory:
		return file.Directory{}, nil
	case file.TypeJSON:
		if raw == nil {
			return nil, fmt.Errorf("json files need --data or --file")
		}
		return file.JSON{Value: json.RawMessage(raw)}, nil
	case file.TypePage:
		if raw == nil {
			return nil, fmt.Errorf("pages need --data or --file")
		}
		var p file.Page
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, fmt.Errorf("invalid page: %w", err)
		}
		return p, nil
	}
	return nil, fmt.Errorf("unknown file type %q", t)
}
