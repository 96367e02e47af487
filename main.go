package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"docchat/internal/api"
	"docchat/internal/chat"
	"docchat/internal/config"
	"docchat/internal/docs"
	"docchat/internal/logging"
	"docchat/internal/session"
	"docchat/internal/terminal"
	"docchat/internal/ui"
)

func main() {
	// Set the GetEnv function for config
	config.GetEnv = os.Getenv

	cfg := parseFlags()

	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Configuration error: %v\n", err)
		os.Exit(1)
	}

	logger := logging.New(cfg.LogPath, cfg.Verbose)
	defer logger.Sync()

	display := ui.NewDisplay()

	// Initialize components
	sessions := session.NewStore(cfg.SessionPath)
	if err := sessions.Load(); err != nil {
		display.PrintWarning(fmt.Sprintf("Failed to load session: %v", err))
	}

	client := api.NewClient(cfg.BaseURL, cfg.RequestTimeout, cfg.UploadTimeout, sessions, logger)

	if err := client.HealthCheck(); err != nil {
		display.PrintError(err)
		display.PrintInfo("Make sure the backend is running and DOCCHAT_API_URL points at it")
		os.Exit(1)
	}

	chatStore := chat.NewStore(client, cfg.PageSize, logger)
	docManager := docs.NewManager(client, sessions, docs.Options{
		MaxWorkers:     cfg.MaxUploadWorkers,
		MaxFileSize:    cfg.MaxFileSize,
		MaxBatchSize:   cfg.MaxFilesPerBatch,
		CollectionName: cfg.CollectionName,
		ExpirySeconds:  cfg.UploadExpirySecs,
	}, logger)

	// Setup graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		display.PrintGoodbye()
		cancel()
		os.Exit(0)
	}()

	if !sessions.Valid() {
		if err := signIn(ctx, client, sessions, display); err != nil {
			display.PrintError(err)
			os.Exit(1)
		}
	}

	display.PrintWelcome(sessions.Email())

	if err := chatStore.LoadInitial(ctx); err != nil {
		display.PrintWarning(fmt.Sprintf("Failed to load history: %v", err))
	}
	display.PrintTranscript(chatStore.Exchanges(), chatStore.HasMore())

	if err := docManager.List(ctx); err != nil {
		display.PrintWarning(fmt.Sprintf("Failed to list documents: %v", err))
	}

	// Main conversation loop
	for {
		display.PrintPrompt()
		input, err := terminal.ReadLine()
		if err != nil {
			break
		}
		if input == "" {
			continue
		}

		if strings.HasPrefix(input, "/") {
			if quit := runCommand(ctx, input, display, client, sessions, chatStore, docManager); quit {
				break
			}
			continue
		}

		sendQuery(ctx, input, display, chatStore)
	}

	display.PrintGoodbye()
}

// parseFlags parses command-line flags over config defaults
func parseFlags() *config.Config {
	cfg := config.NewConfig()

	flag.StringVar(&cfg.BaseURL, "api-url", cfg.BaseURL, "Backend API URL")
	flag.StringVar(&cfg.CollectionName, "collection", cfg.CollectionName, "Embedding collection name")
	flag.IntVar(&cfg.PageSize, "page-size", cfg.PageSize, "Chat history page size")
	flag.BoolVar(&cfg.Verbose, "verbose", cfg.Verbose, "Enable verbose logging")

	timeoutSeconds := flag.Int("timeout", 60, "Request timeout in seconds")

	flag.Parse()

	cfg.RequestTimeout = time.Duration(*timeoutSeconds) * time.Second

	return cfg
}

// signIn prompts for credentials until a session is established
func signIn(ctx context.Context, client *api.Client, sessions *session.Store, display *ui.Display) error {
	for attempt := 0; attempt < 3; attempt++ {
		fmt.Print("Email: ")
		email, err := terminal.ReadLine()
		if err != nil {
			return err
		}
		fmt.Print("Password: ")
		password, err := terminal.ReadPassword()
		if err != nil {
			return err
		}

		if email == "" || password == "" {
			display.PrintWarning("Email and password are required")
			continue
		}

		newSession, err := client.SignIn(ctx, email, password)
		if err != nil {
			if api.IsAuth(err) || api.IsServer(err) {
				display.PrintWarning("Invalid email or password")
				continue
			}
			return err
		}

		if err := sessions.Set(newSession); err != nil {
			display.PrintWarning(fmt.Sprintf("Failed to persist session: %v", err))
		}
		display.PrintSuccess("Signed in")
		return nil
	}
	return fmt.Errorf("too many failed sign-in attempts")
}

// sendQuery submits one question and renders the reconciled exchange
func sendQuery(ctx context.Context, text string, display *ui.Display, chatStore *chat.Store) {
	if chatStore.Pending() {
		display.PrintWarning("Still waiting for the previous answer")
		return
	}

	spinner := display.StartSpinner("Searching your documents")
	err := chatStore.Send(ctx, text)
	spinner.Stop()

	if err != nil {
		if api.IsAuth(err) {
			display.PrintError(fmt.Errorf("session expired, restart to sign in again"))
			return
		}
		display.PrintError(err)
	}

	exchanges := chatStore.Exchanges()
	if len(exchanges) > 0 {
		display.PrintExchange(exchanges[len(exchanges)-1])
	}
}

// runCommand dispatches one slash command; returns true to exit
func runCommand(ctx context.Context, input string, display *ui.Display,
	client *api.Client, sessions *session.Store, chatStore *chat.Store, docManager *docs.Manager) bool {

	fields := strings.Fields(input)
	command, args := fields[0], fields[1:]

	switch command {
	case "/exit", "/quit":
		return true

	case "/clear":
		display.ClearScreen()
		display.PrintWelcome(sessions.Email())

	case "/history":
		display.PrintTranscript(chatStore.Exchanges(), chatStore.HasMore())

	case "/more":
		if !chatStore.HasMore() {
			display.PrintInfo("No older history")
			break
		}
		if err := chatStore.LoadMore(ctx); err != nil {
			display.PrintError(err)
			break
		}
		display.PrintTranscript(chatStore.Exchanges(), chatStore.HasMore())

	case "/new":
		chatStore.Reset()
		display.ClearScreen()
		display.PrintWelcome(sessions.Email())

	case "/docs":
		if err := docManager.List(ctx); err != nil {
			display.PrintError(err)
			break
		}
		display.PrintDocuments(docManager.Documents())

	case "/upload":
		handleUpload(ctx, args, display, docManager)

	case "/delete":
		handleDelete(ctx, args, display, docManager)

	case "/metrics":
		report, err := client.Metrics(ctx)
		if err != nil {
			display.PrintError(err)
			break
		}
		display.PrintMetrics(report)

	case "/clear-cache":
		cacheType := "all"
		if len(args) > 0 {
			cacheType = args[0]
		}
		if err := client.ClearCache(ctx, cacheType); err != nil {
			display.PrintError(err)
			break
		}
		display.PrintSuccess(fmt.Sprintf("%s cache cleared", cacheType))

	case "/signout":
		sessions.Clear()
		chatStore.Reset()
		display.PrintInfo("Signed out")
		if err := signIn(ctx, client, sessions, display); err != nil {
			display.PrintError(err)
			return true
		}
		display.PrintWelcome(sessions.Email())

	default:
		display.PrintWarning(fmt.Sprintf("Unknown command: %s", command))
	}
	return false
}

// handleUpload resolves file arguments and runs the upload batch
func handleUpload(ctx context.Context, args []string, display *ui.Display, docManager *docs.Manager) {
	if len(args) == 0 {
		display.PrintInfo("Usage: /upload <file.pdf> [more files...]")
		return
	}

	workingDir, _ := os.Getwd()
	paths := make([]string, 0, len(args))
	for _, arg := range args {
		if _, err := os.Stat(arg); err == nil {
			paths = append(paths, arg)
			continue
		}
		// Not a direct path; suggest matches instead of failing silently
		matches := terminal.FindPDFFiles(workingDir, arg)
		if len(matches) == 1 {
			paths = append(paths, matches[0])
			continue
		}
		if len(matches) > 1 {
			display.PrintInfo(fmt.Sprintf("'%s' is ambiguous:", arg))
			for i, m := range matches {
				if i >= 10 {
					break
				}
				fmt.Printf("   %s\n", m)
			}
			return
		}
		// Let validation report it as an individual failure
		paths = append(paths, arg)
	}

	result, err := docManager.UploadBatch(ctx, paths, display.PrintUploadProgress)
	if err != nil {
		display.PrintError(err)
		return
	}
	display.PrintBatchSummary(result)

	if err := docManager.List(ctx); err != nil {
		display.PrintWarning(fmt.Sprintf("Failed to refresh documents: %v", err))
	}
}

// handleDelete confirms and deletes one document by list position
func handleDelete(ctx context.Context, args []string, display *ui.Display, docManager *docs.Manager) {
	documents := docManager.Documents()
	if len(args) == 0 || len(documents) == 0 {
		display.PrintInfo("Usage: /delete <n> (see /docs for numbers)")
		return
	}

	n, err := strconv.Atoi(args[0])
	if err != nil || n < 1 || n > len(documents) {
		display.PrintWarning(fmt.Sprintf("Pick a number between 1 and %d", len(documents)))
		return
	}
	doc := documents[n-1]

	fmt.Printf("Delete %q? [y/N] ", doc.FileName)
	answer, err := terminal.ReadLine()
	if err != nil || !strings.EqualFold(answer, "y") {
		display.PrintInfo("Cancelled")
		return
	}

	if err := docManager.Delete(ctx, doc.Key); err != nil {
		display.PrintError(fmt.Errorf("failed to delete %q: %w", doc.FileName, err))
		return
	}
	display.PrintSuccess(fmt.Sprintf("Deleted %q", doc.FileName))
}
