// seed_evaluations.go posts sample candidates and evaluator forms to a running
// Flexing service.
//
// Usage:
//
//	go run scripts/seed_evaluations.go -api http://localhost:8700 -admin-token secret -candidates 20 -evaluators 3
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"math/rand"
	"net/http"
	"time"
)

type integrity struct {
	FreeOfFindings             bool `json:"free_of_findings"`
	NoDisciplinaryPunishment   bool `json:"no_disciplinary_punishment"`
	NotUnderDisciplinaryReview bool `json:"not_under_disciplinary_review"`
}

type achievement struct {
	HasInnovation bool `json:"has_innovation"`
	HasAward      bool `json:"has_award"`
}

type skp struct {
	LastTwoYearsGood bool `json:"last_two_years_good"`
	ShowsImprovement bool `json:"shows_improvement"`
}

type candidate struct {
	ID          string      `json:"id,omitempty"`
	NIP         string      `json:"nip"`
	Name        string      `json:"name"`
	Unit        string      `json:"unit"`
	Position    string      `json:"position"`
	Year        int         `json:"year"`
	Integrity   integrity   `json:"integrity"`
	Achievement achievement `json:"achievement"`
	SKP         skp         `json:"skp"`
}

type evaluation struct {
	CandidateID string             `json:"candidate_id"`
	Year        int                `json:"year"`
	Scores      map[string]float64 `json:"scores"`
	Notes       string             `json:"notes,omitempty"`
}

var (
	firstNames = []string{"Agus", "Budi", "Citra", "Dewi", "Eka", "Fajar", "Gita", "Hadi", "Indah", "Joko", "Kartika", "Lestari"}
	lastNames  = []string{"Santoso", "Wijaya", "Pratama", "Kusuma", "Hidayat", "Saputra", "Nugroho", "Rahmawati"}
	units      = []string{"Biro Umum", "Biro Keuangan", "Pusat Data", "Inspektorat", "Biro SDM"}
	positions  = []string{"Analis Kebijakan", "Pranata Komputer", "Auditor", "Perencana", "Arsiparis"}
	formFields = []string{"performance", "innovation_impact", "achievement", "inspirational", "communication", "collaboration", "leadership", "track_record", "integrity"}
)

func main() {
	apiURL := flag.String("api", "http://localhost:8700", "Flexing API base URL")
	adminToken := flag.String("admin-token", "", "admin bearer token")
	numCandidates := flag.Int("candidates", 20, "candidates to create")
	numEvaluators := flag.Int("evaluators", 3, "evaluators scoring each candidate")
	year := flag.Int("year", time.Now().Year(), "evaluation year")
	seed := flag.Int64("seed", 1, "random seed")
	dryRun := flag.Bool("dry-run", false, "print payloads without posting")
	flag.Parse()

	rng := rand.New(rand.NewSource(*seed))
	client := &http.Client{Timeout: 10 * time.Second}

	created, evaluated, failed := 0, 0, 0
	for i := 0; i < *numCandidates; i++ {
		c := randomCandidate(rng, i, *year)
		if *dryRun {
			fmt.Printf("[%d] %s %s (%s)\n", i+1, c.NIP, c.Name, c.Unit)
			continue
		}

		var out candidate
		headers := map[string]string{}
		if *adminToken != "" {
			headers["Authorization"] = "Bearer " + *adminToken
		}
		if err := post(client, *apiURL+"/api/v1/admin/candidates", headers, c, &out); err != nil {
			log.Printf("skip candidate %q: %v", c.Name, err)
			failed++
			continue
		}
		created++

		for e := 0; e < *numEvaluators; e++ {
			ev := evaluation{CandidateID: out.ID, Year: *year, Scores: randomScores(rng)}
			headers := map[string]string{"X-Evaluator-ID": fmt.Sprintf("seed-evaluator-%d", e+1)}
			if err := post(client, *apiURL+"/api/v1/evaluations", headers, ev, nil); err != nil {
				log.Printf("skip evaluation of %q by %s: %v", c.Name, headers["X-Evaluator-ID"], err)
				failed++
				continue
			}
			evaluated++
		}
	}

	log.Printf("done: %d candidates, %d evaluations, %d failed", created, evaluated, failed)
}

func randomCandidate(rng *rand.Rand, i, year int) candidate {
	return candidate{
		NIP:      fmt.Sprintf("19%02d%02d%02d20%02d01%d%03d", 70+rng.Intn(25), 1+rng.Intn(12), 1+rng.Intn(28), 5+rng.Intn(15), 1+rng.Intn(2), i+1),
		Name:     firstNames[rng.Intn(len(firstNames))] + " " + lastNames[rng.Intn(len(lastNames))],
		Unit:     units[rng.Intn(len(units))],
		Position: positions[rng.Intn(len(positions))],
		Year:     year,
		// Most candidates are clean; a few carry findings so the integrity cap shows up.
		Integrity: integrity{
			FreeOfFindings:             rng.Float64() > 0.1,
			NoDisciplinaryPunishment:   rng.Float64() > 0.05,
			NotUnderDisciplinaryReview: rng.Float64() > 0.05,
		},
		Achievement: achievement{
			HasInnovation: rng.Float64() > 0.5,
			HasAward:      rng.Float64() > 0.6,
		},
		SKP: skp{
			LastTwoYearsGood: rng.Float64() > 0.3,
			ShowsImprovement: rng.Float64() > 0.4,
		},
	}
}

func randomScores(rng *rand.Rand) map[string]float64 {
	base := 60 + rng.Float64()*30
	scores := make(map[string]float64, len(formFields))
	for _, f := range formFields {
		v := base + rng.NormFloat64()*8
		if v < 1 {
			v = 1
		}
		if v > 100 {
			v = 100
		}
		scores[f] = float64(int(v))
	}
	return scores
}

func post(client *http.Client, url string, headers map[string]string, in, out interface{}) error {
	body, err := json.Marshal(in)
	if err != nil {
		return err
	}
	req, err := http.NewRequest("POST", url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		msg, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("status %d: %s", resp.StatusCode, bytes.TrimSpace(msg))
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}
