package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/olekukonko/tablewriter"
	"github.com/rs/zerolog/log"

	"github.com/tamkaize/impermanent-loss-quantum-optimization/internal/allocator"
	"github.com/tamkaize/impermanent-loss-quantum-optimization/internal/catalog"
	"github.com/tamkaize/impermanent-loss-quantum-optimization/internal/config"
	"github.com/tamkaize/impermanent-loss-quantum-optimization/internal/hedgepricer"
	"github.com/tamkaize/impermanent-loss-quantum-optimization/internal/logger"
	"github.com/tamkaize/impermanent-loss-quantum-optimization/internal/solver"
	"github.com/tamkaize/impermanent-loss-quantum-optimization/internal/state"
	"github.com/tamkaize/impermanent-loss-quantum-optimization/internal/types"
	"github.com/tamkaize/impermanent-loss-quantum-optimization/internal/web"
)

// main is the entry point for the allocator service. Without flags it
// serves the HTTP API; with -positions it runs a single optimization
// against local catalog files and prints the result.
func main() {
	positionsPath := flag.String("positions", "", "Path to a positions JSON document (one-shot mode)")
	hedgesPath := flag.String("hedges", "", "Path to a hedges JSON document (optional)")
	scenarioID := flag.String("scenario", "CALM", "Scenario ID, e.g. CALM or CHAOTIC")
	quoteAsset := flag.String("quote-asset", "", "Price hedges for this asset (ETH or BTC) instead of using catalog quotes")
	numSamples := flag.Int("samples", 0, "Number of solver samples (0 = configured default)")
	useLocal := flag.Bool("local", false, "Enumerate locally instead of calling the remote solver")
	flag.Parse()

	// --- 1. Initialization Phase ---
	if err := godotenv.Load(); err != nil {
		log.Warn().Msg("Warning: .env file not found. Relying on OS environment variables.")
	}

	logger.Initialize(os.Getenv("LOG_LEVEL"))

	oneShot := *positionsPath != ""

	var remote solver.Solver
	if !*useLocal {
		if err := config.LoadConfig(); err != nil {
			if oneShot {
				log.Warn().Err(err).Msg("Solver configuration incomplete, falling back to local enumeration")
			} else {
				log.Fatal().Err(err).Msg("Failed to load configuration")
			}
		} else {
			remote = solver.NewDiracClient(
				config.SolverAPIURL,
				config.SolverAPIToken,
				config.SolverDeviceType,
				time.Duration(config.SolverPollIntervalSeconds)*time.Second,
			)
		}
	}
	alloc := allocator.New(remote)

	if oneShot {
		runOnce(alloc, *positionsPath, *hedgesPath, *scenarioID, *quoteAsset, *numSamples)
		return
	}

	log.Info().Msg("Hedged Yield Allocator starting...")

	// Persistence is optional; the pipeline runs without it.
	dbCfg := state.DBConfig{
		Host: os.Getenv("DB_HOST"), Port: mustAtoi(os.Getenv("DB_PORT"), 5432),
		User: os.Getenv("DB_USER"), Password: os.Getenv("DB_PASSWORD"),
		DBName: os.Getenv("DB_NAME"), SSLMode: os.Getenv("DB_SSLMODE"),
	}
	if dbCfg.Host == "" {
		log.Warn().Msg("DB_HOST not set, running without run persistence")
	} else {
		if err := state.InitDB(dbCfg); err != nil {
			log.Fatal().Err(err).Msg("Failed to initialize database")
		}
		defer state.CloseDB()
		if err := state.EnsureSchema(); err != nil {
			log.Fatal().Err(err).Msg("Failed to ensure database schema")
		}
	}

	defaultCatalog, scenarios := loadDefaultCatalog()

	webPort := os.Getenv("WEB_PORT")
	if webPort == "" {
		webPort = "8080"
	}
	webServer := web.NewWebServer(webPort, alloc, defaultCatalog, scenarios, config.DefaultModelParameters)
	log.Info().Str("port", webPort).Str("url", "http://localhost:"+webPort).Msg("Starting allocator API")
	if err := webServer.Start(); err != nil {
		log.Fatal().Err(err).Msg("Web server failed")
	}
}

// loadDefaultCatalog reads the catalog documents named by environment
// variables, if any. The server starts with an empty catalog otherwise;
// optimize requests must then carry inline documents.
func loadDefaultCatalog() (types.Catalog, []types.Scenario) {
	scenarios := catalog.BuiltinScenarios()

	positionsPath := os.Getenv("POSITIONS_FILE")
	if positionsPath == "" {
		return types.Catalog{}, scenarios
	}

	positionsDoc, err := os.ReadFile(positionsPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", positionsPath).Msg("Failed to read positions document")
	}
	var hedgesDoc []byte
	if hedgesPath := os.Getenv("HEDGES_FILE"); hedgesPath != "" {
		hedgesDoc, err = os.ReadFile(hedgesPath)
		if err != nil {
			log.Fatal().Err(err).Str("path", hedgesPath).Msg("Failed to read hedges document")
		}
	}

	c, err := catalog.BuildCatalog(positionsDoc, hedgesDoc)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to build default catalog")
	}

	if scenariosPath := os.Getenv("SCENARIOS_FILE"); scenariosPath != "" {
		scenariosDoc, err := os.ReadFile(scenariosPath)
		if err != nil {
			log.Fatal().Err(err).Str("path", scenariosPath).Msg("Failed to read scenarios document")
		}
		scenarios, err = catalog.ParseScenariosDocument(scenariosDoc)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to parse scenarios document")
		}
	}

	log.Info().Int("positions", len(c.Positions)).Int("scenarios", len(scenarios)).Msg("Default catalog loaded")
	return c, scenarios
}

// runOnce executes a single optimization from local files and prints the
// decision, breakdown, and baseline comparison.
func runOnce(alloc *allocator.Allocator, positionsPath, hedgesPath, scenarioID, quoteAsset string, numSamples int) {
	positionsDoc, err := os.ReadFile(positionsPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", positionsPath).Msg("Failed to read positions document")
	}
	var hedgesDoc []byte
	if hedgesPath != "" {
		hedgesDoc, err = os.ReadFile(hedgesPath)
		if err != nil {
			log.Fatal().Err(err).Str("path", hedgesPath).Msg("Failed to read hedges document")
		}
	}

	c, err := catalog.BuildCatalog(positionsDoc, hedgesDoc)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to build catalog")
	}
	if quoteAsset != "" {
		hedgepricer.ApplyQuotes(&c, quoteAsset)
	}
	scenario, err := catalog.PickScenario(catalog.BuiltinScenarios(), scenarioID)
	if err != nil {
		log.Fatal().Err(err).Msg("Unknown scenario")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	result, err := alloc.Optimize(ctx, allocator.Request{
		Catalog:    c,
		Scenario:   scenario,
		Parameters: config.DefaultModelParameters,
		NumSamples: numSamples,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Optimization failed")
	}

	printResult(result)
}

func printResult(result types.OptimizationResult) {
	fmt.Printf("\nRun %s  scenario=%s  elapsed=%dms\n\n", result.RunID, result.ScenarioID, result.ElapsedMS)

	decisionTable := tablewriter.NewWriter(os.Stdout)
	decisionTable.Header("", "Position", "Hedge", "Size", "Rebalance", "Tenor", "Net APR")
	decisionTable.Append(
		"optimized",
		decisionLabel(result.Decision),
		result.Decision.HedgeType,
		result.Decision.SizeTier,
		result.Decision.RebalanceTier,
		orDash(result.Decision.TenorTier),
		fmt.Sprintf("%.2f%%", result.Breakdown.NetAPR*100),
	)
	decisionTable.Append(
		"baseline",
		decisionLabel(result.Baseline.Decision),
		result.Baseline.Decision.HedgeType,
		result.Baseline.Decision.SizeTier,
		result.Baseline.Decision.RebalanceTier,
		orDash(result.Baseline.Decision.TenorTier),
		fmt.Sprintf("%.2f%%", result.Baseline.Breakdown.NetAPR*100),
	)
	decisionTable.Render()

	fmt.Printf("\nNet APR improvement over %s: %+.2f%%\n\n", result.Baseline.BaselineID, result.Baseline.NetAPRImprovement*100)

	breakdownTable := tablewriter.NewWriter(os.Stdout)
	breakdownTable.Header("Component", "APR")
	b := result.Breakdown
	breakdownTable.Append("Gross yield", fmt.Sprintf("%+.2f%%", b.Rewards.TotalGrossAPR*100))
	breakdownTable.Append("IL penalty", fmt.Sprintf("%-.2f%%", -b.Penalties.ILPenaltyAPR*100))
	breakdownTable.Append("Hedge cost", fmt.Sprintf("%-.2f%%", -b.Penalties.HedgeCostAPR*100))
	breakdownTable.Append("Execution drag", fmt.Sprintf("%-.2f%%", -b.Penalties.ExecutionDragAPR*100))
	breakdownTable.Append("Hedge overhead", fmt.Sprintf("%-.2f%%", -b.Penalties.HedgeOverheadAPR*100))
	breakdownTable.Append("Net", fmt.Sprintf("%+.2f%%", b.NetAPR*100))
	breakdownTable.Render()
}

func decisionLabel(d types.Decision) string {
	if d.PositionLabel != "" {
		return d.PositionLabel
	}
	return d.PositionID
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func mustAtoi(s string, fallback int) int {
	if s == "" {
		return fallback
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return fallback
	}
	return v
}
