package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/peterbourgon/ff/v3"
	"github.com/peterbourgon/ff/v3/ffcli"
	"github.com/viant/sqlite-hypergraph/embedding"
	"github.com/viant/sqlite-hypergraph/engine"
	"github.com/viant/sqlite-hypergraph/hypergraph"
	"github.com/viant/sqlite-hypergraph/index"
	"github.com/viant/sqlite-hypergraph/session"
	"github.com/viant/sqlite-hypergraph/vector"
	"go.uber.org/zap"
)

const envPrefix = "HYPERGRAPH"

// rootConfig holds the flags shared by every subcommand.
type rootConfig struct {
	db          string
	verbose     bool
	busyTimeout time.Duration
	journalMode string
	index       string
	metric      string

	out    io.Writer
	logger *zap.Logger
}

func newRootCommand(out io.Writer) (*ffcli.Command, *rootConfig) {
	cfg := &rootConfig{out: out}
	fs := flag.NewFlagSet("hypergraph", flag.ContinueOnError)
	defaults := engine.DefaultOptions()
	fs.StringVar(&cfg.db, "db", "hypergraph.db", "database path or :memory:")
	fs.BoolVar(&cfg.verbose, "verbose", false, "log debug output")
	fs.DurationVar(&cfg.busyTimeout, "busy-timeout", defaults.BusyTimeout, "time to wait on a locked database")
	fs.StringVar(&cfg.journalMode, "journal-mode", defaults.JournalMode, "journal mode of file databases")
	fs.StringVar(&cfg.index, "index", string(index.KindAuto), "search strategy: auto, brute, cover or sql")
	fs.StringVar(&cfg.metric, "metric", string(vector.L2), "distance metric: l2 or cosine")
	fs.String("config", "", "config file path")

	root := &ffcli.Command{
		Name:       "hypergraph",
		ShortUsage: "hypergraph [flags] <subcommand> [flags] [<arg>...]",
		ShortHelp:  "manage a SQLite hypergraph database",
		FlagSet:    fs,
		Options: []ff.Option{
			ff.WithEnvVarPrefix(envPrefix),
			ff.WithConfigFileFlag("config"),
			ff.WithConfigFileParser(ff.PlainParser),
		},
		Exec: func(context.Context, []string) error { return flag.ErrHelp },
	}
	root.Subcommands = []*ffcli.Command{
		cfg.initCommand(),
		cfg.insertNodeCommand(),
		cfg.addHyperedgeCommand(),
		cfg.membersCommand(),
		cfg.upsertEmbeddingCommand(),
		cfg.searchCommand(),
		cfg.statsCommand(),
		cfg.reindexCommand(),
	}
	return root, cfg
}

// options translates the parsed flags into session options, building the
// logger on first use.
func (c *rootConfig) options() ([]session.Option, error) {
	kind, err := embedding.ParseKind(c.index)
	if err != nil {
		return nil, err
	}
	metric, err := vector.ParseMetric(c.metric)
	if err != nil {
		return nil, err
	}
	if c.logger == nil {
		if c.verbose {
			c.logger, err = zap.NewDevelopment()
		} else {
			c.logger, err = zap.NewProduction()
		}
		if err != nil {
			return nil, fmt.Errorf("build logger: %w", err)
		}
	}
	return []session.Option{
		session.WithLogger(c.logger),
		session.WithBusyTimeout(c.busyTimeout),
		session.WithJournalMode(c.journalMode),
		session.WithIndexKind(kind),
		session.WithMetric(metric),
	}, nil
}

func (c *rootConfig) with(ctx context.Context, fn func(s *session.Session) error) error {
	opts, err := c.options()
	if err != nil {
		return err
	}
	return session.With(ctx, c.db, fn, opts...)
}

func (c *rootConfig) sync() {
	if c.logger != nil {
		_ = c.logger.Sync()
	}
}

func (c *rootConfig) print(v any) error {
	enc := json.NewEncoder(c.out)
	return enc.Encode(v)
}

func subcommandOptions() []ff.Option {
	return []ff.Option{ff.WithEnvVarPrefix(envPrefix)}
}

func (c *rootConfig) initCommand() *ffcli.Command {
	return &ffcli.Command{
		Name:       "init",
		ShortUsage: "hypergraph init",
		ShortHelp:  "create the hypergraph tables if they are missing",
		Exec: func(ctx context.Context, _ []string) error {
			return c.with(ctx, func(s *session.Session) error {
				return s.Initialize(ctx)
			})
		},
	}
}

func (c *rootConfig) insertNodeCommand() *ffcli.Command {
	return &ffcli.Command{
		Name:       "insert-node",
		ShortUsage: "hypergraph insert-node <json|->",
		ShortHelp:  "store a node document; - reads it from stdin",
		Exec: func(ctx context.Context, args []string) error {
			if len(args) != 1 {
				return errors.New("insert-node expects one JSON document")
			}
			body, err := readArg(args[0])
			if err != nil {
				return err
			}
			return c.with(ctx, func(s *session.Session) error {
				id, err := s.InsertNode(ctx, body)
				if err != nil {
					return err
				}
				return c.print(map[string]string{"id": id})
			})
		},
	}
}

func (c *rootConfig) addHyperedgeCommand() *ffcli.Command {
	fs := flag.NewFlagSet("add-hyperedge", flag.ContinueOnError)
	id := fs.String("id", "", "hyperedge id, generated when empty")
	properties := fs.String("properties", "", "JSON object of hyperedge properties")
	return &ffcli.Command{
		Name:       "add-hyperedge",
		ShortUsage: "hypergraph add-hyperedge [-id id] [-properties json] <node>...",
		ShortHelp:  "connect nodes with an ordered hyperedge",
		FlagSet:    fs,
		Options:    subcommandOptions(),
		Exec: func(ctx context.Context, args []string) error {
			in := hypergraph.HyperedgeInput{ID: *id, Properties: *properties, Members: args}
			if in.ID == "" {
				in.ID = hypergraph.NewHyperedgeID()
			}
			return c.with(ctx, func(s *session.Session) error {
				if err := s.CreateHyperedge(ctx, in); err != nil {
					return err
				}
				return c.print(map[string]string{"id": in.ID})
			})
		},
	}
}

func (c *rootConfig) membersCommand() *ffcli.Command {
	return &ffcli.Command{
		Name:       "members",
		ShortUsage: "hypergraph members <hyperedge-id>",
		ShortHelp:  "list a hyperedge's nodes in order",
		Exec: func(ctx context.Context, args []string) error {
			if len(args) != 1 {
				return errors.New("members expects one hyperedge id")
			}
			return c.with(ctx, func(s *session.Session) error {
				if _, err := s.GetHyperedge(ctx, args[0]); err != nil {
					return err
				}
				members, err := s.Members(ctx, args[0])
				if err != nil {
					return err
				}
				return c.print(members)
			})
		},
	}
}

func (c *rootConfig) upsertEmbeddingCommand() *ffcli.Command {
	fs := flag.NewFlagSet("upsert-embedding", flag.ContinueOnError)
	model := fs.String("model", embedding.DefaultModel, "model that produced the vector")
	start := fs.Int("start", 0, "start of the embedded text span")
	end := fs.Int("end", 0, "end of the embedded text span")
	return &ffcli.Command{
		Name:       "upsert-embedding",
		ShortUsage: "hypergraph upsert-embedding [flags] <node-id> <json-array|@file|->",
		ShortHelp:  "store or replace a node's embedding",
		FlagSet:    fs,
		Options:    subcommandOptions(),
		Exec: func(ctx context.Context, args []string) error {
			if len(args) != 2 {
				return errors.New("upsert-embedding expects a node id and a vector")
			}
			vec, err := readVector(args[1])
			if err != nil {
				return err
			}
			return c.with(ctx, func(s *session.Session) error {
				return s.UpsertEmbedding(ctx, args[0], vec, embedding.WithModel(*model), embedding.WithSpan(*start, *end))
			})
		},
	}
}

func (c *rootConfig) searchCommand() *ffcli.Command {
	fs := flag.NewFlagSet("search", flag.ContinueOnError)
	k := fs.Int("k", 10, "number of neighbors")
	return &ffcli.Command{
		Name:       "search",
		ShortUsage: "hypergraph search [-k n] <json-array|@file|->",
		ShortHelp:  "find the nodes nearest to a vector",
		FlagSet:    fs,
		Options:    subcommandOptions(),
		Exec: func(ctx context.Context, args []string) error {
			if len(args) != 1 {
				return errors.New("search expects one vector")
			}
			query, err := readVector(args[0])
			if err != nil {
				return err
			}
			return c.with(ctx, func(s *session.Session) error {
				neighbors, err := s.SearchNearest(ctx, query, *k)
				if err != nil {
					return err
				}
				if neighbors == nil {
					neighbors = []embedding.Neighbor{}
				}
				return c.print(neighbors)
			})
		},
	}
}

func (c *rootConfig) statsCommand() *ffcli.Command {
	return &ffcli.Command{
		Name:       "stats",
		ShortUsage: "hypergraph stats",
		ShortHelp:  "print table row counts as JSON",
		Exec: func(ctx context.Context, _ []string) error {
			return c.with(ctx, func(s *session.Session) error {
				stats, err := s.Stats(ctx)
				if err != nil {
					return err
				}
				return c.print(stats)
			})
		},
	}
}

func (c *rootConfig) reindexCommand() *ffcli.Command {
	return &ffcli.Command{
		Name:       "reindex",
		ShortUsage: "hypergraph reindex",
		ShortHelp:  "reload the embeddings index and print its status as JSON",
		Exec: func(ctx context.Context, _ []string) error {
			return c.with(ctx, func(s *session.Session) error {
				if _, err := s.Reindex(ctx); err != nil {
					return err
				}
				status, err := s.IndexStatus(ctx)
				if err != nil {
					return err
				}
				if status == nil {
					status = []session.IndexStatus{}
				}
				return c.print(status)
			})
		},
	}
}

// readArg returns arg itself, the contents of the file named after a
// leading @, or stdin for -.
func readArg(arg string) (string, error) {
	switch {
	case arg == "-":
		data, err := io.ReadAll(os.Stdin)
		return string(data), err
	case strings.HasPrefix(arg, "@"):
		data, err := os.ReadFile(arg[1:])
		return string(data), err
	}
	return arg, nil
}

func readVector(arg string) ([]float32, error) {
	raw, err := readArg(arg)
	if err != nil {
		return nil, err
	}
	vec, err := vector.ParseJSON(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", hypergraph.ErrInvalidJSON, err)
	}
	return vec, nil
}

