// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Wanderdesk Contributors

package main

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/samber/oops"
	"gopkg.in/yaml.v3"
)

// Output formats accepted by --format.
const (
	formatTable = "table"
	formatJSON  = "json"
	formatYAML  = "yaml"
)

func validateFormat(format string) error {
	switch format {
	case formatTable, formatJSON, formatYAML:
		return nil
	default:
		return oops.Code("INVALID_FORMAT").
			With("format", format).
			Errorf("unknown output format %q (want table, json or yaml)", format)
	}
}

// writeValue renders v as JSON or YAML. Table output is left to the caller
// through table.
func writeValue(w io.Writer, format string, v any, table func(*tabwriter.Writer)) error {
	switch format {
	case formatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(v); err != nil {
			return oops.Code("OUTPUT_FAILED").With("format", format).Wrap(err)
		}
		return nil
	case formatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return oops.Code("OUTPUT_FAILED").With("format", format).Wrap(err)
		}
		if err := enc.Close(); err != nil {
			return oops.Code("OUTPUT_FAILED").With("format", format).Wrap(err)
		}
		return nil
	case formatTable:
		tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		table(tw)
		if err := tw.Flush(); err != nil {
			return oops.Code("OUTPUT_FAILED").With("format", format).Wrap(err)
		}
		return nil
	default:
		return validateFormat(format)
	}
}

func row(w io.Writer, cols ...any) {
	for i, c := range cols {
		if i > 0 {
			_, _ = fmt.Fprint(w, "\t")
		}
		_, _ = fmt.Fprint(w, c)
	}
	_, _ = fmt.Fprintln(w)
}
