package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"
	"strings"

	"github.com/tlxue/everclaw/internal/adapter"
	"github.com/tlxue/everclaw/models"
)

var (
	errUsage        = errors.New("usage")
	errNotConfirmed = errors.New("purge needs -yes")
)

const usageText = `vaultctl [-url URL] [-key API_KEY] [-timeout 30s] <command> [args]

commands:
  health                                check that the server answers
  version                               print the vaultctl build version
  provision [-name N] [-api-key K]      create a vault and print its API key
  put <path> [local|-] [-type MIME]     store a file (stdin when local is omitted or -)
  append <path> [local|-] [-type MIME]  append to a file, creating it when missing
  get <path> [-o local]                 print a file (or write it to local)
  rm <path>                             delete a file
  ls [-cursor C] [-limit N] [-all]      list files
  status                                show usage, quota and file count
  purge -yes                            delete every file in the vault
  batch [-prefix P] <local>...          upload several text files in one request

Settings fall back to EVERCLAW_URL, EVERCLAW_API_KEY and EVERCLAW_TIMEOUT.
`

// cli runs one vaultctl command against a [adapter.VaultClient].
type cli struct {
	client  adapter.VaultClient
	version string

	in  io.Reader
	out io.Writer
}

func (c *cli) run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return errUsage
	}

	cmd, rest := args[0], args[1:]
	switch cmd {
	case "health":
		if err := c.client.Health(ctx); err != nil {
			return err
		}
		_, err := fmt.Fprintln(c.out, "ok")
		return err
	case "version":
		_, err := fmt.Fprintln(c.out, c.version)
		return err
	case "provision":
		return c.provision(ctx, rest)
	case "put":
		return c.write(ctx, cmd, rest, c.client.Put)
	case "append":
		return c.write(ctx, cmd, rest, c.client.Append)
	case "get":
		return c.get(ctx, rest)
	case "rm":
		return c.remove(ctx, rest)
	case "ls":
		return c.list(ctx, rest)
	case "status":
		status, err := c.client.Status(ctx)
		if err != nil {
			return err
		}
		return c.printJSON(status)
	case "purge":
		return c.purge(ctx, rest)
	case "batch":
		return c.batch(ctx, rest)
	default:
		return fmt.Errorf("%w: unknown command %q", errUsage, cmd)
	}
}

func newFlagSet(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	return fs
}

// parseInterspersed lets flags follow positional arguments, so both
// "put -type text/plain a.md" and "put a.md -type text/plain" work.
func parseInterspersed(fs *flag.FlagSet, args []string) ([]string, error) {
	var positional []string
	for {
		if err := fs.Parse(args); err != nil {
			return nil, fmt.Errorf("%w: %w", errUsage, err)
		}
		args = fs.Args()
		if len(args) == 0 {
			return positional, nil
		}
		positional = append(positional, args[0])
		args = args[1:]
	}
}

func (c *cli) provision(ctx context.Context, args []string) error {
	fs := newFlagSet("provision")
	name := fs.String("name", "", "Vault label")
	apiKey := fs.String("api-key", "", "Use this API key instead of a generated one")
	if _, err := parseInterspersed(fs, args); err != nil {
		return err
	}

	req := models.ProvisionRequest{Name: *name}
	if *apiKey != "" {
		req.APIKey = apiKey
	}

	result, err := c.client.Provision(ctx, req)
	if err != nil {
		return err
	}
	return c.printJSON(result)
}

type writeFunc func(ctx context.Context, path string, content []byte, contentType string) (models.WriteResult, error)

func (c *cli) write(ctx context.Context, name string, args []string, fn writeFunc) error {
	fs := newFlagSet(name)
	contentType := fs.String("type", "", "Content-Type of the file")
	positional, err := parseInterspersed(fs, args)
	if err != nil {
		return err
	}
	if len(positional) < 1 || len(positional) > 2 {
		return fmt.Errorf("%w: %s <path> [local|-]", errUsage, name)
	}

	source := "-"
	if len(positional) == 2 {
		source = positional[1]
	}

	content, err := c.readSource(source)
	if err != nil {
		return err
	}
	if *contentType == "" {
		*contentType = guessContentType(positional[0])
	}

	result, err := fn(ctx, positional[0], content, *contentType)
	if err != nil {
		return err
	}
	return c.printJSON(result)
}

func (c *cli) readSource(source string) ([]byte, error) {
	if source == "-" {
		return io.ReadAll(c.in)
	}
	return os.ReadFile(source)
}

func guessContentType(path string) string {
	if ct := mime.TypeByExtension(filepath.Ext(path)); ct != "" {
		return ct
	}
	return "application/octet-stream"
}

func (c *cli) get(ctx context.Context, args []string) error {
	fs := newFlagSet("get")
	output := fs.String("o", "", "Write to this local file instead of stdout")
	positional, err := parseInterspersed(fs, args)
	if err != nil {
		return err
	}
	if len(positional) != 1 {
		return fmt.Errorf("%w: get <path>", errUsage)
	}

	file, err := c.client.Get(ctx, positional[0])
	if err != nil {
		return err
	}

	if *output != "" {
		return os.WriteFile(*output, file.Content, 0o600)
	}
	_, err = c.out.Write(file.Content)
	return err
}

func (c *cli) remove(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("%w: rm <path>", errUsage)
	}

	result, err := c.client.Delete(ctx, args[0])
	if err != nil {
		return err
	}
	return c.printJSON(result)
}

func (c *cli) list(ctx context.Context, args []string) error {
	fs := newFlagSet("ls")
	cursor := fs.String("cursor", "", "Continue from this cursor")
	limit := fs.Int("limit", 0, "Page size")
	all := fs.Bool("all", false, "Follow cursors until the listing is complete")
	if _, err := parseInterspersed(fs, args); err != nil {
		return err
	}

	page, err := c.client.List(ctx, *cursor, *limit)
	if err != nil {
		return err
	}

	for *all && page.Truncated && page.Cursor != "" {
		next, err := c.client.List(ctx, page.Cursor, *limit)
		if err != nil {
			return err
		}
		next.Objects = append(page.Objects, next.Objects...)
		page = next
	}

	return c.printJSON(page)
}

func (c *cli) purge(ctx context.Context, args []string) error {
	fs := newFlagSet("purge")
	yes := fs.Bool("yes", false, "Confirm deleting every file")
	if _, err := parseInterspersed(fs, args); err != nil {
		return err
	}
	if !*yes {
		return errNotConfirmed
	}

	result, err := c.client.Purge(ctx)
	if err != nil {
		return err
	}
	return c.printJSON(result)
}

func (c *cli) batch(ctx context.Context, args []string) error {
	fs := newFlagSet("batch")
	prefix := fs.String("prefix", "", "Vault path prefix for every file")
	positional, err := parseInterspersed(fs, args)
	if err != nil {
		return err
	}
	if len(positional) == 0 {
		return fmt.Errorf("%w: batch <local>...", errUsage)
	}

	req := models.BatchRequest{Files: make([]models.BatchFile, 0, len(positional))}
	for _, local := range positional {
		data, err := os.ReadFile(local)
		if err != nil {
			return err
		}
		content := string(data)
		req.Files = append(req.Files, models.BatchFile{
			Path:        batchPath(*prefix, local),
			Content:     &content,
			ContentType: guessContentType(local),
		})
	}

	result, err := c.client.Batch(ctx, req)
	if err != nil {
		return err
	}
	if err = c.printJSON(result); err != nil {
		return err
	}
	if !result.OK {
		return fmt.Errorf("batch: %d of %d files failed", result.Failed, len(result.Results))
	}
	return nil
}

func batchPath(prefix, local string) string {
	p := strings.TrimPrefix(filepath.ToSlash(filepath.Clean(local)), "./")
	p = strings.TrimLeft(p, "/")
	if prefix == "" {
		return p
	}
	return strings.TrimRight(prefix, "/") + "/" + p
}

func (c *cli) printJSON(v any) error {
	enc := json.NewEncoder(c.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
