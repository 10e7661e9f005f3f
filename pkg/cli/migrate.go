package cli

import (
	"context"

	"github.com/m-mizutani/fireconf"
	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"

	"github.com/0xhatsume/tg-agentic-rag-dash/pkg/repository/firestore"
	"github.com/0xhatsume/tg-agentic-rag-dash/pkg/repository/sqlite"
	"github.com/0xhatsume/tg-agentic-rag-dash/pkg/utils/logging"
)

func cmdMigrate() *cli.Command {
	var backend string
	var projectID string
	var databaseID string
	var prefix string
	var sqlitePath string
	var dimension int64
	var dryRun bool

	return &cli.Command{
		Name:    "migrate",
		Aliases: []string{"m"},
		Usage:   "Prepare storage: Firestore indexes or SQLite schema",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "repository-backend",
				Usage:       "Backend to migrate (firestore or sqlite)",
				Value:       "sqlite",
				Sources:     cli.EnvVars("TGRAG_REPOSITORY_BACKEND"),
				Destination: &backend,
			},
			&cli.StringFlag{
				Name:        "firestore-project-id",
				Usage:       "Firestore Project ID",
				Sources:     cli.EnvVars("TGRAG_FIRESTORE_PROJECT_ID"),
				Destination: &projectID,
			},
			&cli.StringFlag{
				Name:        "firestore-database-id",
				Usage:       "Firestore Database ID",
				Sources:     cli.EnvVars("TGRAG_FIRESTORE_DATABASE_ID"),
				Destination: &databaseID,
			},
			&cli.StringFlag{
				Name:        "firestore-collection-prefix",
				Usage:       "Prefix for Firestore collection names",
				Sources:     cli.EnvVars("TGRAG_FIRESTORE_COLLECTION_PREFIX"),
				Destination: &prefix,
			},
			&cli.StringFlag{
				Name:        "sqlite-path",
				Usage:       "SQLite database file path",
				Value:       "agent.db",
				Sources:     cli.EnvVars("TGRAG_SQLITE_PATH"),
				Destination: &sqlitePath,
			},
			&cli.Int64Flag{
				Name:        "embedding-dimension",
				Usage:       "Embedding vector dimension",
				Value:       768,
				Sources:     cli.EnvVars("TGRAG_EMBEDDING_DIMENSION"),
				Destination: &dimension,
			},
			&cli.BoolFlag{
				Name:        "dry-run",
				Usage:       "Preview changes without applying (firestore only)",
				Destination: &dryRun,
			},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			logger := logging.Default()

			switch backend {
			case "sqlite":
				// Opening the database creates the schema
				repo, err := sqlite.New(sqlitePath, int(dimension))
				if err != nil {
					return goerr.Wrap(err, "failed to initialize sqlite schema")
				}
				if err := repo.Close(); err != nil {
					return goerr.Wrap(err, "failed to close sqlite repository")
				}
				logger.Info("SQLite schema ready", "path", sqlitePath, "dimension", dimension)
				return nil

			case "firestore":
				if projectID == "" {
					return goerr.New("firestore-project-id is required")
				}

				logger.Info("Migrate configuration",
					"projectID", projectID,
					"databaseID", databaseID,
					"dimension", dimension,
					"dryRun", dryRun)

				indexConfig := getIndexConfig(prefix, int(dimension))

				client, err := fireconf.NewClient(ctx, projectID, databaseID)
				if err != nil {
					return goerr.Wrap(err, "failed to create fireconf client")
				}
				defer func() {
					if err := client.Close(); err != nil {
						logger.Error("failed to close fireconf client", "error", err.Error())
					}
				}()

				if dryRun {
					logger.Info("Dry run mode - previewing changes")
					plan, err := client.GetMigrationPlan(ctx, indexConfig)
					if err != nil {
						return goerr.Wrap(err, "failed to create migration plan")
					}

					if len(plan.Steps) == 0 {
						logger.Info("No changes required")
						return nil
					}

					for _, step := range plan.Steps {
						logger.Info("Migration step",
							"collection", step.Collection,
							"operation", step.Operation,
							"description", step.Description,
							"destructive", step.Destructive)
					}
					return nil
				}

				logger.Info("Applying migrations")
				if err := client.Migrate(ctx, indexConfig); err != nil {
					return goerr.Wrap(err, "failed to apply migrations")
				}
				logger.Info("Migrations applied successfully")
				return nil

			default:
				return goerr.New("backend needs no migration", goerr.V("backend", backend))
			}
		},
	}
}

// getIndexConfig returns the Firestore index configuration for the
// dimension-routed memories collection.
func getIndexConfig(prefix string, dimension int) *fireconf.Config {
	return &fireconf.Config{
		Collections: []fireconf.Collection{
			{
				Name: firestore.MemoriesCollectionName(prefix, dimension),
				Indexes: []fireconf.Index{
					// GetMemories: RoomID ASC, Kind ASC, CreatedAt DESC
					{
						Fields: []fireconf.IndexField{
							{Path: "RoomID", Order: fireconf.OrderAscending},
							{Path: "Kind", Order: fireconf.OrderAscending},
							{Path: "CreatedAt", Order: fireconf.OrderDescending},
						},
					},
					// Vector search index
					{
						Fields: []fireconf.IndexField{
							{
								Path: "Embedding",
								Vector: &fireconf.VectorConfig{
									Dimension: dimension,
								},
							},
						},
					},
				},
			},
		},
	}
}
