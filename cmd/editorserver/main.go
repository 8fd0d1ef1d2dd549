package main

import (
	"crypto/rand"
	"flag"
	"log"
	"net/http"

	"mooceditor"
)

func main() {
	var (
		settingsPath = flag.String("settings", "", "Settings file (default: mooceditor.yaml if present)")
		listen       = flag.String("listen", "", "Address to listen on (default from settings, :8080)")
		offline      = flag.Bool("offline", false, "Disable model calls; prompts and imports still work")
		verbose      = flag.Bool("verbose", false, "Enable verbose debugging output")
	)
	flag.Parse()

	mooceditor.SetVerbose(*verbose)

	settings, err := mooceditor.LoadSettings(*settingsPath)
	if err != nil {
		log.Fatalf("Failed to load settings: %v", err)
	}
	if *listen != "" {
		settings.Listen = *listen
	}

	prompts, err := mooceditor.LoadPrompts(settings.PromptsPath)
	if err != nil {
		log.Fatalf("Failed to load prompts: %v", err)
	}

	history, err := settings.OpenHistory()
	if err != nil {
		log.Fatalf("Failed to open history: %v", err)
	}
	if history != nil {
		defer history.Close()
	}

	var gen *mooceditor.Generator
	if !*offline {
		engine, err := settings.NewEngine()
		if err != nil {
			log.Printf("Model calls disabled: %v", err)
		} else {
			gen = mooceditor.NewGenerator(engine, prompts)
			gen.SetLogDir(settings.LogDir)
			if history != nil {
				gen.SetHistory(history)
			}
		}
	}

	key := []byte(settings.SessionKey)
	if len(key) == 0 {
		key = make([]byte, 32)
		if _, err := rand.Read(key); err != nil {
			log.Fatalf("Failed to create session key: %v", err)
		}
		log.Printf("SESSION_KEY not set, sessions will not survive a restart")
	}

	server := NewServer(Config{
		SessionKey: key,
		Prompts:    prompts,
		Generator:  gen,
		History:    history,
		Launcher:   mooceditor.NewLauncher(settings.PlayerPath),
	})

	log.Printf("Starting editor server on %s", settings.Listen)
	log.Fatal(http.ListenAndServe(settings.Listen, server.Routes()))
}
