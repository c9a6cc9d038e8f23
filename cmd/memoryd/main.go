package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/endlessblink/Like-I-Said-memory-mcp-server-sub006/internal/config"
	"github.com/endlessblink/Like-I-Said-memory-mcp-server-sub006/internal/datadir"
	"github.com/endlessblink/Like-I-Said-memory-mcp-server-sub006/internal/records"
	"github.com/endlessblink/Like-I-Said-memory-mcp-server-sub006/internal/service"
	"github.com/endlessblink/Like-I-Said-memory-mcp-server-sub006/internal/storage"
	"github.com/endlessblink/Like-I-Said-memory-mcp-server-sub006/internal/vector"

	"github.com/spf13/cobra"
)

var (
	cfgFile      string
	dbPath       string
	forceVariant string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "memoryd",
	Short: "Like-I-Said memory store - persistent memories and tasks with semantic search",
	Long: `memoryd manages the Like-I-Said record store: short text memories and
tasks persisted through a fallback chain of storage backends, with a local
vector index for semantic retrieval.`,
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the active storage variant and index state",
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := openService()
		if err != nil {
			return err
		}
		defer svc.Close()

		st := svc.IndexStatus()
		fmt.Printf("storage variant: %s\n", svc.Variant())
		fmt.Printf("embedder:        %s\n", st.Embedder)
		fmt.Printf("index degraded:  %v\n", st.Degraded)
		fmt.Printf("memories:        %d\n", st.Memories)
		fmt.Printf("tasks:           %d\n", st.Tasks)
		return nil
	},
}

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Search memories and tasks by semantic similarity",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		kind, _ := cmd.Flags().GetString("type")
		limit, _ := cmd.Flags().GetInt("limit")

		svc, err := openService()
		if err != nil {
			return err
		}
		defer svc.Close()

		results, err := svc.Search(context.Background(), args[0], vector.Kind(kind), limit)
		if err != nil {
			return err
		}
		for _, r := range results {
			fmt.Printf("%.4f  %-6s  %s  %s\n", r.Score, r.Kind, r.ID, r.Content)
		}
		return nil
	},
}

var relevantCmd = &cobra.Command{
	Use:   "relevant <task-id>",
	Short: "List memories relevant to a stored task",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")

		svc, err := openService()
		if err != nil {
			return err
		}
		defer svc.Close()

		ctx := context.Background()
		task, err := svc.GetTask(ctx, args[0])
		if err != nil {
			return err
		}
		relevant, err := svc.RelevantMemories(ctx, task, limit)
		if err != nil {
			return err
		}
		for _, r := range relevant {
			fmt.Printf("%.4f  %s\n", r.Relevance, r.ID)
		}
		return nil
	},
}

var reindexCmd = &cobra.Command{
	Use:   "reindex",
	Short: "Rebuild the vector index from everything in storage",
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := openService()
		if err != nil {
			return err
		}
		defer svc.Close()

		if err := svc.Reindex(context.Background()); err != nil {
			return err
		}
		st := svc.IndexStatus()
		fmt.Printf("reindexed %d memories and %d tasks\n", st.Memories, st.Tasks)
		return nil
	},
}

var exportLegacyCmd = &cobra.Command{
	Use:   "export-legacy <path>",
	Short: "Export a legacy store's tables to a migration snapshot",
	Long: `Export every user table of the SQLite store at <path> into
<path>.export.json, the same hand-off artifact the backend selector writes
when it falls back from the native-binary variant.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		snap := storage.ExportLegacy(args[0])
		if snap == nil {
			return fmt.Errorf("store at %s is not readable; nothing exported", args[0])
		}
		fmt.Printf("exported %d tables to %s\n", len(snap), storage.ExportPath(args[0]))
		return nil
	},
}

var addMemoryCmd = &cobra.Command{
	Use:   "add-memory <content>",
	Short: "Store a new memory",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		category, _ := cmd.Flags().GetString("category")
		project, _ := cmd.Flags().GetString("project")
		tags, _ := cmd.Flags().GetStringSlice("tags")

		svc, err := openService()
		if err != nil {
			return err
		}
		defer svc.Close()

		m, err := svc.SaveMemory(context.Background(), records.Memory{
			Content:  args[0],
			Category: category,
			Project:  project,
			Tags:     tags,
		})
		if err != nil {
			return err
		}
		out, _ := json.MarshalIndent(m, "", "  ")
		fmt.Println(string(out))
		return nil
	},
}

var addTaskCmd = &cobra.Command{
	Use:   "add-task <title>",
	Short: "Store a new task",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		description, _ := cmd.Flags().GetString("description")
		project, _ := cmd.Flags().GetString("project")
		category, _ := cmd.Flags().GetString("category")
		tags, _ := cmd.Flags().GetStringSlice("tags")

		svc, err := openService()
		if err != nil {
			return err
		}
		defer svc.Close()

		t, err := svc.SaveTask(context.Background(), records.Task{
			Title:       args[0],
			Description: description,
			Project:     project,
			Category:    category,
			Tags:        tags,
			Status:      "todo",
		})
		if err != nil {
			return err
		}
		out, _ := json.MarshalIndent(t, "", "  ")
		fmt.Println(string(out))
		return nil
	},
}

// openService resolves configuration and brings up the record service.
func openService() (*service.Service, error) {
	dirs, err := datadir.New("")
	if err != nil {
		return nil, err
	}

	path := cfgFile
	if path == "" {
		path = dirs.ConfigPath()
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}

	if cfg.DataDir != "" {
		if dirs, err = datadir.New(cfg.DataDir); err != nil {
			return nil, err
		}
	}
	if err := dirs.EnsureDirs(); err != nil {
		return nil, err
	}

	storagePath := cfg.Storage.Path
	if dbPath != "" {
		storagePath = dbPath
	}
	if storagePath == "" {
		storagePath = dirs.DatabasePath()
	}

	variant := storage.Variant(cfg.Storage.ForceVariant)
	if forceVariant != "" {
		variant = storage.Variant(forceVariant)
	}

	indexDir := cfg.Vector.IndexDir
	if indexDir == "" {
		indexDir = dirs.IndexDir()
	}

	return service.New(service.Config{
		StoragePath:  storagePath,
		ForceVariant: variant,
		IndexDir:     indexDir,
		EmbedDims:    cfg.Vector.EmbedDims,
	})
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file path")
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "storage target path (overrides config)")
	rootCmd.PersistentFlags().StringVar(&forceVariant, "force-backend", "", "pin a storage variant: native-binary, embedded-engine, flat-file")

	searchCmd.Flags().String("type", "", "restrict to \"memory\" or \"task\"")
	searchCmd.Flags().Int("limit", 10, "maximum results")
	relevantCmd.Flags().Int("limit", 10, "maximum results")
	addMemoryCmd.Flags().String("category", "", "memory category")
	addMemoryCmd.Flags().String("project", "", "project name")
	addMemoryCmd.Flags().StringSlice("tags", nil, "comma-separated tags")
	addTaskCmd.Flags().String("description", "", "task description")
	addTaskCmd.Flags().String("project", "", "project name")
	addTaskCmd.Flags().String("category", "", "task category")
	addTaskCmd.Flags().StringSlice("tags", nil, "comma-separated tags")

	rootCmd.AddCommand(statusCmd, searchCmd, relevantCmd, reindexCmd,
		exportLegacyCmd, addMemoryCmd, addTaskCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
