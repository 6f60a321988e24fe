package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/healthlog/platform/internal/seed"
	"github.com/healthlog/platform/internal/shared/config"
	"github.com/healthlog/platform/internal/shared/database"
	"github.com/healthlog/platform/internal/store"
	"github.com/healthlog/platform/internal/tracker"
)

// Populates the document store with demo users for local development
// and load testing. Each demo user gets seeded collections, randomized
// visit activity, and a handful of medical records.

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	users := flag.Int("users", 50, "number of demo users to create")
	flag.Parse()

	log.Println("demo seed starting")

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	db, err := database.New(ctx, cfg.Database)
	if err != nil {
		log.Fatalf("connect postgres: %v", err)
	}
	defer db.Close()

	if err := database.Migrate(ctx, db.Pool); err != nil {
		log.Fatalf("migrate: %v", err)
	}

	gofakeit.Seed(time.Now().UnixNano())

	st := store.NewPostgresStore(db.Pool)
	seeder := seed.New(cfg.Seed, nil, nil)

	if err := seedUsers(context.Background(), st, seeder, *users); err != nil {
		log.Fatalf("seed users: %v", err)
	}

	log.Println("demo seed complete")
}

func seedUsers(ctx context.Context, st store.Store, seeder *seed.Seeder, count int) error {
	log.Printf("seeding %d demo users", count)

	for i := 0; i < count; i++ {
		uid := fmt.Sprintf("demo-%s", gofakeit.UUID())
		doc := seeder.Document(ctx)

		randomizeActivity(doc)
		tracker.EvaluateAwards(doc)
		addRecords(doc)

		doc.Profile = tracker.UserProfile{
			DisplayName:         gofakeit.FirstName(),
			Conditions:          randomConditions(),
			EmergencyContact:    gofakeit.Phone(),
			OnboardingCompleted: true,
		}

		if err := st.Save(ctx, uid, store.Full(doc)); err != nil {
			return err
		}

		if (i+1)%25 == 0 {
			log.Printf("users seeded: %d/%d", i+1, count)
		}
	}

	log.Println("users seeded")
	return nil
}

// randomizeActivity applies a plausible interaction history so stats,
// history, and awards all carry data.
func randomizeActivity(doc *tracker.UserDocument) {
	actions := []tracker.Action{tracker.ActionToggle, tracker.ActionIncrease, tracker.ActionDecrease}
	interactions := gofakeit.Number(0, 60)

	for i := 0; i < interactions; i++ {
		collection := tracker.CollectionHospitals
		size := len(doc.Hospitals)
		if gofakeit.Bool() && len(doc.Ambulance) > 0 {
			collection = tracker.CollectionAmbulance
			size = len(doc.Ambulance)
		}
		if size == 0 {
			continue
		}

		cmd := tracker.Command{
			Collection: collection,
			Index:      gofakeit.Number(0, size-1),
			Action:     actions[gofakeit.Number(0, len(actions)-1)],
		}
		if _, err := tracker.Apply(doc, cmd); err != nil {
			// Indexes are always in range here; skip anything unexpected.
			continue
		}
	}
}

func addRecords(doc *tracker.UserDocument) {
	incidents := []string{"emergency", "appointment", "symptom_log", "medication", "test", "other"}
	impacts := []string{"none", "minimal", "moderate", "significant", "severe"}

	for i := 0; i < gofakeit.Number(0, 5); i++ {
		rec, err := tracker.NewMedicalRecord(tracker.CreateRecordRequest{
			IncidentType: incidents[gofakeit.Number(0, len(incidents)-1)],
			OccurredAt:   gofakeit.DateRange(time.Now().AddDate(-1, 0, 0), time.Now()).Format(time.RFC3339),
			Location:     gofakeit.City(),
			Symptoms:     []string{gofakeit.Word(), gofakeit.Word()},
			Severity:     gofakeit.Number(tracker.SeverityMin, tracker.SeverityMax),
			Impact:       impacts[gofakeit.Number(0, len(impacts)-1)],
			Notes:        gofakeit.Sentence(8),
		})
		if err != nil {
			continue
		}
		doc.AddRecord(rec)
	}
}

func randomConditions() []string {
	catalogue := []string{"asthma", "diabetes", "migraine", "hypertension", "epilepsy"}
	n := gofakeit.Number(0, 2)
	out := make([]string, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, catalogue[gofakeit.Number(0, len(catalogue)-1)])
	}
	return out
}
