// Copyright (c) 2025 Jeremy Hahn
// Copyright (c) 2025 Automate The Things, LLC
//
// This file is part of go-repokey.
//
// go-repokey is dual-licensed:
//
// 1. GNU Affero General Public License v3.0 (AGPL-3.0)
//    See LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html
//
// 2. Commercial License
//    Contact licensing@automatethethings.com for commercial licensing options.

package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/jeremyhahn/go-repokey/pkg/repository"
)

// OutputFormat defines the output format type
type OutputFormat string

const (
	OutputFormatText  OutputFormat = "text"
	OutputFormatJSON  OutputFormat = "json"
	OutputFormatTable OutputFormat = "table"
)

const createdLayout = "2006-01-02 15:04:05"

// Printer handles formatted output
type Printer struct {
	format OutputFormat
	writer io.Writer
}

// NewPrinter creates a new Printer
func NewPrinter(format string, writer io.Writer) *Printer {
	return &Printer{
		format: OutputFormat(format),
		writer: writer,
	}
}

// RepositoryInfo summarizes an opened or created repository.
type RepositoryInfo struct {
	ID       string `json:"repository_id"`
	KeyID    string `json:"key_id"`
	Location string `json:"location"`
	Version  int    `json:"version"`
}

type keyJSON struct {
	ID       string     `json:"id"`
	Current  bool       `json:"current"`
	Hostname string     `json:"hostname,omitempty"`
	Username string     `json:"username,omitempty"`
	Created  *time.Time `json:"created,omitempty"`
	N        uint32     `json:"n"`
	R        uint32     `json:"r"`
	P        uint32     `json:"p"`
}

// PrintKeyList prints the key records of a repository
func (p *Printer) PrintKeyList(keys []repository.KeyInfo) error {
	switch p.format {
	case OutputFormatJSON:
		keyList := make([]keyJSON, len(keys))
		for i, key := range keys {
			keyList[i] = keyJSON{
				ID:       key.ID.String(),
				Current:  key.Current,
				Hostname: key.Hostname,
				Username: key.Username,
				N:        key.N,
				R:        key.R,
				P:        key.P,
			}
			if !key.Created.IsZero() {
				created := key.Created
				keyList[i].Created = &created
			}
		}
		return p.printJSON(map[string]any{
			"keys": keyList,
		})
	case OutputFormatTable:
		if len(keys) == 0 {
			fmt.Fprintln(p.writer, "No keys found")
			return nil
		}
		fmt.Fprintf(p.writer, " %-10s %-15s %-20s %-20s\n", "ID", "USER", "HOST", "CREATED")
		fmt.Fprintln(p.writer, strings.Repeat("-", 69))
		for _, key := range keys {
			marker := " "
			if key.Current {
				marker = "*"
			}
			fmt.Fprintf(p.writer, "%s%-10s %-15s %-20s %-20s\n",
				marker, key.ID.Str(), key.Username, key.Hostname, formatCreated(key.Created))
		}
		return nil
	case OutputFormatText:
		if len(keys) == 0 {
			fmt.Fprintln(p.writer, "No keys found")
			return nil
		}
		fmt.Fprintln(p.writer, "Keys:")
		for _, key := range keys {
			marker := "-"
			if key.Current {
				marker = "*"
			}
			fmt.Fprintf(p.writer, "  %s %s", marker, key.ID.Str())
			if who := owner(key); who != "" {
				fmt.Fprintf(p.writer, " %s", who)
			}
			if !key.Created.IsZero() {
				fmt.Fprintf(p.writer, " (%s)", formatCreated(key.Created))
			}
			fmt.Fprintln(p.writer)
		}
		return nil
	default:
		return fmt.Errorf("unknown output format: %s", p.format)
	}
}

// PrintRepository prints repository details
func (p *Printer) PrintRepository(message string, info RepositoryInfo) error {
	switch p.format {
	case OutputFormatJSON:
		return p.printJSON(info)
	case OutputFormatTable, OutputFormatText:
		fmt.Fprintln(p.writer, message)
		fmt.Fprintf(p.writer, "  Repository: %s\n", info.ID)
		fmt.Fprintf(p.writer, "  Key:        %s\n", info.KeyID)
		fmt.Fprintf(p.writer, "  Location:   %s\n", info.Location)
		fmt.Fprintf(p.writer, "  Version:    %d\n", info.Version)
		return nil
	default:
		return fmt.Errorf("unknown output format: %s", p.format)
	}
}

// PrintKeyChange prints the outcome of a key record change
func (p *Printer) PrintKeyChange(action, keyID string) error {
	switch p.format {
	case OutputFormatJSON:
		return p.printJSON(map[string]any{
			"status": "success",
			"action": action,
			"key_id": keyID,
		})
	case OutputFormatTable, OutputFormatText:
		fmt.Fprintf(p.writer, "%s key %s\n", action, keyID)
		return nil
	default:
		return fmt.Errorf("unknown output format: %s", p.format)
	}
}

// PrintVersion prints version information
func (p *Printer) PrintVersion(info VersionInfo) error {
	switch p.format {
	case OutputFormatJSON:
		return p.printJSON(info)
	case OutputFormatTable, OutputFormatText:
		fmt.Fprintf(p.writer, "repokey version %s\n", info.Version)
		fmt.Fprintf(p.writer, "Git commit: %s\n", info.GitCommit)
		fmt.Fprintf(p.writer, "Build date: %s\n", info.BuildDate)
		fmt.Fprintf(p.writer, "Go version: %s\n", info.GoVersion)
		fmt.Fprintf(p.writer, "OS/Arch: %s/%s\n", info.OS, info.Arch)
		return nil
	default:
		return fmt.Errorf("unknown output format: %s", p.format)
	}
}

// PrintSuccess prints a success message
func (p *Printer) PrintSuccess(message string) error {
	switch p.format {
	case OutputFormatJSON:
		return p.printJSON(map[string]any{
			"status":  "success",
			"message": message,
		})
	case OutputFormatTable, OutputFormatText:
		fmt.Fprintln(p.writer, message)
		return nil
	default:
		return fmt.Errorf("unknown output format: %s", p.format)
	}
}

// PrintError prints an error message
func (p *Printer) PrintError(err error) error {
	switch p.format {
	case OutputFormatJSON:
		return p.printJSON(map[string]any{
			"status": "error",
			"error":  err.Error(),
		})
	case OutputFormatTable, OutputFormatText:
		fmt.Fprintf(p.writer, "Error: %v\n", err)
		return nil
	default:
		return fmt.Errorf("unknown output format: %s", p.format)
	}
}

// printJSON prints data as JSON
func (p *Printer) printJSON(data any) error {
	encoder := json.NewEncoder(p.writer)
	encoder.SetIndent("", "  ")
	return encoder.Encode(data)
}

func owner(key repository.KeyInfo) string {
	switch {
	case key.Username != "" && key.Hostname != "":
		return key.Username + "@" + key.Hostname
	case key.Username != "":
		return key.Username
	default:
		return key.Hostname
	}
}

func formatCreated(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Local().Format(createdLayout)
}
