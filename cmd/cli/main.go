package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"voicegate/pkg/logger"
	"voicegate/pkg/voicegate"
)

const defaultConfigFile = "voicegate.toml"

func main() {
	log := logger.GetLogger()

	printBanner()

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	command := os.Args[1]
	log.Infof("Executing command: %s", command)

	switch command {
	case "enroll":
		handleEnroll()
	case "build":
		handleBuild()
	case "verify":
		handleVerify()
	case "status":
		handleStatus()
	case "attempts":
		handleAttempts()
	case "reset":
		handleReset()
	default:
		fmt.Printf("Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

func printBanner() {
	banner := `
__     __    _           ____       _
\ \   / /__ (_) ___ ___ / ___| __ _| |_ ___
 \ \ / / _ \| |/ __/ _ \ |  _ / _' | __/ _ \
  \ V / (_) | | (_|  __/ |_| | (_| | ||  __/
   \_/ \___/|_|\___\___|\____|\__,_|\__\___|

        Voice Biometric Authentication CLI
`
	fmt.Println(banner)
}

func printUsage() {
	fmt.Println(`Usage: voicegate <command> [options]

Commands:
  enroll   <user> <audio-file>   Extract features from a clip and add an enrollment sample
  build    <user>                Build the user's voiceprint from enrolled samples
  verify   <user> <audio-file>   Authenticate a clip against the user's voiceprint
  status   <user>                Show enrollment progress
  attempts <user>                Show recent authentication attempts
  reset    <user>                Delete the user's samples and voiceprint

Common options:
  -config <file>      TOML config file (default voicegate.toml)
  -db <file>          SQLite database path
  -store <dir>        Use a filesystem blob store under dir instead of SQLite
  -threshold <float>  Similarity acceptance threshold

Audio files may be wav, mp3, flac, m4a or ogg; non-WAV input requires ffmpeg.`)
}

// commonFlags registers the flags every command shares and returns pointers
// to their values.
func commonFlags(fs *flag.FlagSet) (configPath, dbPath, storeDir *string, threshold *float64) {
	configPath = fs.String("config", defaultConfigFile, "TOML config file")
	dbPath = fs.String("db", "", "SQLite database path")
	storeDir = fs.String("store", "", "filesystem blob store directory")
	threshold = fs.Float64("threshold", 0, "similarity acceptance threshold")
	return
}

// buildService assembles a service from config file + flag overrides.
func buildService(configPath, dbPath, storeDir string, threshold float64, thresholdSet, explicitConfig bool) (voicegate.Service, error) {
	cfg, err := loadFileConfig(configPath, explicitConfig)
	if err != nil {
		return nil, err
	}
	if dbPath != "" {
		cfg.DBPath = dbPath
	}
	if storeDir != "" {
		cfg.StoreDir = storeDir
	}
	// 0 and negative thresholds are valid cosine values, so the flag only
	// overrides when it was actually passed.
	if thresholdSet {
		cfg.Threshold = threshold
	}

	opts := []voicegate.Option{
		voicegate.WithDBPath(cfg.DBPath),
		voicegate.WithTempDir(cfg.TempDir),
		voicegate.WithSampleRate(cfg.SampleRate),
		voicegate.WithMFCCCount(cfg.MFCCCount),
		voicegate.WithMinSamples(cfg.MinSamples),
		voicegate.WithThreshold(cfg.Threshold),
	}
	if cfg.StoreDir != "" {
		store, err := voicegate.NewFilesystemStore(cfg.StoreDir)
		if err != nil {
			return nil, err
		}
		opts = append(opts, voicegate.WithStore(store))
	}
	return voicegate.NewService(opts...)
}

// parseUserCommand parses "<user> [audio-file] [flags]" for a subcommand
// needing wantFile positional arguments after the user ID.
func parseUserCommand(name string, wantFile bool) (userID, audioPath string, svc voicegate.Service) {
	log := logger.GetLogger()

	fs := flag.NewFlagSet(name, flag.ExitOnError)
	configPath, dbPath, storeDir, threshold := commonFlags(fs)

	args := os.Args[2:]
	var positional []string
	for len(args) > 0 && len(args[0]) > 0 && args[0][0] != '-' {
		positional = append(positional, args[0])
		args = args[1:]
	}
	fs.Parse(args)

	thresholdSet := false
	fs.Visit(func(f *flag.Flag) {
		if f.Name == "threshold" {
			thresholdSet = true
		}
	})

	want := 1
	if wantFile {
		want = 2
	}
	if len(positional) != want {
		fmt.Printf("Usage: voicegate %s <user>%s [options]\n", name, map[bool]string{true: " <audio-file>", false: ""}[wantFile])
		os.Exit(1)
	}

	userID = positional[0]
	if wantFile {
		audioPath = positional[1]
	}

	explicit := *configPath != defaultConfigFile
	service, err := buildService(*configPath, *dbPath, *storeDir, *threshold, thresholdSet, explicit)
	if err != nil {
		log.Fatalf("Failed to initialize service: %v", err)
	}
	return userID, audioPath, service
}

func handleEnroll() {
	log := logger.GetLogger()
	userID, audioPath, svc := parseUserCommand("enroll", true)
	defer svc.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	status, err := svc.EnrollSample(ctx, userID, audioPath)
	if err != nil {
		log.Fatalf("Enrollment failed: %v", err)
	}

	fmt.Printf("Sample stored. User %s has %d/%d samples (%s).\n",
		status.UserID, status.Samples, status.Required, status.State)
	if status.Samples >= status.Required && !status.VoiceprintBuilt {
		fmt.Println("Enough samples collected. Run 'voicegate build' to create the voiceprint.")
	}
}

func handleBuild() {
	log := logger.GetLogger()
	userID, _, svc := parseUserCommand("build", false)
	defer svc.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := svc.BuildVoiceprint(ctx, userID); err != nil {
		log.Fatalf("Voiceprint build failed: %v", err)
	}
	fmt.Printf("Voiceprint built for user %s.\n", userID)
}

func handleVerify() {
	log := logger.GetLogger()
	userID, audioPath, svc := parseUserCommand("verify", true)
	defer svc.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	result, err := svc.Verify(ctx, userID, audioPath)
	if err != nil {
		log.Fatalf("Verification failed: %v", err)
	}

	verdict := "REJECTED"
	if result.Accepted {
		verdict = "ACCEPTED"
	}
	fmt.Printf("%s  similarity=%.3f  threshold=%.2f\n", verdict, result.Similarity, result.Threshold)
	if !result.Accepted {
		os.Exit(2)
	}
}

func handleStatus() {
	log := logger.GetLogger()
	userID, _, svc := parseUserCommand("status", false)
	defer svc.Close()

	status, err := svc.Status(userID)
	if err != nil {
		log.Fatalf("Status lookup failed: %v", err)
	}

	fmt.Printf("User:       %s\n", status.UserID)
	fmt.Printf("Samples:    %d/%d\n", status.Samples, status.Required)
	fmt.Printf("State:      %s\n", status.State)
	fmt.Printf("Voiceprint: %t\n", status.VoiceprintBuilt)
}

func handleAttempts() {
	log := logger.GetLogger()
	userID, _, svc := parseUserCommand("attempts", false)
	defer svc.Close()

	attempts, err := svc.Attempts(userID, 20)
	if err != nil {
		log.Fatalf("Attempt lookup failed: %v", err)
	}
	if len(attempts) == 0 {
		fmt.Printf("No authentication attempts recorded for user %s.\n", userID)
		return
	}

	fmt.Printf("%-20s  %-10s  %-9s  %s\n", "TIME", "SIMILARITY", "THRESHOLD", "RESULT")
	for _, a := range attempts {
		verdict := "rejected"
		if a.Accepted {
			verdict = "accepted"
		}
		fmt.Printf("%-20s  %-10.3f  %-9.2f  %s\n",
			a.CreatedAt.Format("2006-01-02 15:04:05"), a.Similarity, a.Threshold, verdict)
	}
}

func handleReset() {
	log := logger.GetLogger()
	userID, _, svc := parseUserCommand("reset", false)
	defer svc.Close()

	if err := svc.Reset(userID); err != nil {
		log.Fatalf("Reset failed: %v", err)
	}
	fmt.Printf("Voice data cleared for user %s.\n", userID)
}
