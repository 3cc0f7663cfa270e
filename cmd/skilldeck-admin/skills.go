package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"
)

type remoteOptions struct {
	BaseURL string
	Timeout time.Duration
}

func (o *remoteOptions) register(fs *flag.FlagSet, cmdCtx *commandContext) {
	fs.StringVar(&o.BaseURL, "url", cmdCtx.Config.HTTP.BaseURL, "Dashboard base URL")
	fs.DurationVar(&o.Timeout, "timeout", defaultRequestTimeout, "Request timeout")
}

func (o remoteOptions) client() (*apiClient, error) {
	return newAPIClient(o.BaseURL, o.Timeout)
}

// keyValues collects repeated -set key=value flags.
type keyValues map[string]string

func (kv keyValues) String() string {
	parts := make([]string, 0, len(kv))
	for k, v := range kv {
		parts = append(parts, k+"="+v)
	}
	sort.Strings(parts)
	return strings.Join(parts, ",")
}

func (kv keyValues) Set(s string) error {
	k, v, ok := strings.Cut(s, "=")
	if !ok || strings.TrimSpace(k) == "" {
		return fmt.Errorf("expected key=value, got %q", s)
	}
	kv[strings.TrimSpace(k)] = v
	return nil
}

// fileList collects repeated -file field=path flags.
type fileList map[string][]string

func (fl fileList) String() string {
	return fmt.Sprint(map[string][]string(fl))
}

func (fl fileList) Set(s string) error {
	k, v, ok := strings.Cut(s, "=")
	if !ok || strings.TrimSpace(k) == "" || strings.TrimSpace(v) == "" {
		return fmt.Errorf("expected field=path, got %q", s)
	}
	k = strings.TrimSpace(k)
	fl[k] = append(fl[k], strings.TrimSpace(v))
	return nil
}

type catalogResponse struct {
	Skills []struct {
		ID         string `json:"id"`
		Name       string `json:"name"`
		Category   string `json:"category"`
		Route      string `json:"route"`
		Operations []struct {
			ID       string `json:"id"`
			Encoding string `json:"encoding"`
			Fields   []struct {
				Name     string `json:"name"`
				Required bool   `json:"required"`
			} `json:"fields"`
		} `json:"operations"`
	} `json:"skills"`
}

func runSkills(cmdCtx *commandContext, args []string) error {
	var remote remoteOptions
	fs := flag.NewFlagSet("skills", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	remote.register(fs, cmdCtx)
	if err := fs.Parse(args); err != nil {
		return err
	}
	client, err := remote.client()
	if err != nil {
		return err
	}

	var cat catalogResponse
	if err := client.getJSON(cmdCtx.Ctx, "/api/skills", nil, &cat); err != nil {
		return err
	}

	tw := tabwriter.NewWriter(cmdCtx.Out, 0, 0, 2, ' ', 0)
	if err := writef(tw, "SKILL\tCATEGORY\tOPERATION\tENCODING\tFIELDS\n"); err != nil {
		return err
	}
	for _, sk := range cat.Skills {
		if len(sk.Operations) == 0 {
			if err := writef(tw, "%s\t%s\t-\t-\t(static page %s)\n", sk.ID, sk.Category, sk.Route); err != nil {
				return err
			}
			continue
		}
		for _, op := range sk.Operations {
			fields := make([]string, 0, len(op.Fields))
			for _, f := range op.Fields {
				name := f.Name
				if f.Required {
					name += "*"
				}
				fields = append(fields, name)
			}
			if err := writef(tw, "%s\t%s\t%s\t%s\t%s\n", sk.ID, sk.Category, op.ID, op.Encoding, strings.Join(fields, " ")); err != nil {
				return err
			}
		}
	}
	return tw.Flush()
}

type submitOptions struct {
	remoteOptions
	Skill     string
	Operation string
	Params    keyValues
	Files     fileList
	Output    string
	AsLink    bool
}

func parseSubmitFlags(cmdCtx *commandContext, args []string) (submitOptions, error) {
	opts := submitOptions{Params: keyValues{}, Files: fileList{}}
	fs := flag.NewFlagSet("submit", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	opts.register(fs, cmdCtx)
	fs.StringVar(&opts.Skill, "skill", "", "Skill id (required)")
	fs.StringVar(&opts.Operation, "op", "", "Operation id (required)")
	fs.Var(opts.Params, "set", "Parameter as key=value (repeatable)")
	fs.Var(opts.Files, "file", "File upload as field=path (repeatable)")
	fs.StringVar(&opts.Output, "o", "", "Where to save a produced file (default: server filename in the current directory)")
	fs.BoolVar(&opts.AsLink, "link", false, "Ask for a download link instead of the file")
	if err := fs.Parse(args); err != nil {
		return submitOptions{}, err
	}
	if opts.Skill == "" || opts.Operation == "" {
		return submitOptions{}, errors.New("--skill and --op are required")
	}
	return opts, nil
}

func runSubmit(cmdCtx *commandContext, args []string) error {
	opts, err := parseSubmitFlags(cmdCtx, args)
	if err != nil {
		return err
	}
	client, err := opts.client()
	if err != nil {
		return err
	}

	ctx, stop := withSignals(cmdCtx.Ctx)
	defer stop()

	started := time.Now()
	res, err := client.submit(ctx, opts.Skill, opts.Operation, submission{
		Params: opts.Params,
		Files:  opts.Files,
		AsLink: opts.AsLink,
	})
	if err != nil {
		return err
	}
	took := time.Since(started).Truncate(time.Millisecond)

	if res.Outcome != nil {
		return printOutcome(cmdCtx, client, res.Outcome)
	}

	path := opts.Output
	if path == "" && res.Filename != "" {
		path = filepath.Base(res.Filename)
	}
	if path == "" || path == "." || path == string(filepath.Separator) {
		path = opts.Skill + "-" + opts.Operation + ".out"
	}
	path = filepath.Clean(path)
	if err := os.WriteFile(path, res.Body, 0o644); err != nil { //nolint:gosec // output files are meant to be readable
		return fmt.Errorf("save %s: %w", path, err)
	}
	return writef(cmdCtx.Out, "saved %s (%d bytes, %s) in %s\n", path, len(res.Body), res.ContentType, took)
}

// printOutcome renders the JSON outcome of a record or link result.
func printOutcome(cmdCtx *commandContext, client *apiClient, outcome map[string]any) error {
	if msg, _ := outcome["message"].(string); msg != "" {
		if err := writeln(cmdCtx.Out, msg); err != nil {
			return err
		}
	}
	if link, _ := outcome["download_url"].(string); link != "" {
		if err := writef(cmdCtx.Out, "download: %s\n", client.absolute(link)); err != nil {
			return err
		}
	}
	rows, _ := outcome["rows"].([]any)
	if len(rows) == 0 {
		return nil
	}
	tw := tabwriter.NewWriter(cmdCtx.Out, 0, 0, 2, ' ', 0)
	for _, r := range rows {
		row, _ := r.(map[string]any)
		label, _ := row["label"].(string)
		value, _ := row["value"].(string)
		if err := writef(tw, "%s\t%s\n", label, value); err != nil {
			return err
		}
	}
	return tw.Flush()
}

// withSignals derives a context cancelled by SIGINT or SIGTERM.
func withSignals(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}
