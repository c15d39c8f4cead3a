// import_answers.go: standalone script that loads a questionId → rating document
// (YAML or JSON) and records each rating through the Maturity API.
//
// Usage:
//
//	go run scripts/import_answers.go -file answers.yaml -api http://localhost:8700 -user alice
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"sort"
	"time"

	"gopkg.in/yaml.v3"
)

func main() {
	path := flag.String("file", "answers.yaml", "path to a questionId: rating document")
	apiURL := flag.String("api", "http://localhost:8700", "Maturity API base URL")
	userID := flag.String("user", "", "X-User-ID header value")
	dryRun := flag.Bool("dry-run", false, "print answers without posting")
	flag.Parse()

	if *userID == "" {
		log.Fatal("-user is required")
	}

	data, err := os.ReadFile(*path)
	if err != nil {
		log.Fatalf("read %s: %v", *path, err)
	}

	// YAML is a superset of JSON, so one decoder covers both.
	var answers map[string]int
	if err := yaml.Unmarshal(data, &answers); err != nil {
		log.Fatalf("parse %s: %v", *path, err)
	}

	ids := make([]string, 0, len(answers))
	for id := range answers {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	log.Printf("parsed %d answers from %s", len(ids), *path)

	if *dryRun {
		for i, id := range ids {
			fmt.Printf("[%d] %s = %d\n", i+1, id, answers[id])
		}
		return
	}

	client := &http.Client{Timeout: 10 * time.Second}
	recorded, skipped := 0, 0
	for _, id := range ids {
		body, _ := json.Marshal(map[string]int{"rating": answers[id]})
		req, err := http.NewRequest("PUT", *apiURL+"/api/v1/answers/"+id, bytes.NewReader(body))
		if err != nil {
			log.Printf("skip %q: %v", id, err)
			skipped++
			continue
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-User-ID", *userID)

		resp, err := client.Do(req)
		if err != nil {
			log.Printf("skip %q: %v", id, err)
			skipped++
			continue
		}
		resp.Body.Close()

		if resp.StatusCode == http.StatusOK {
			recorded++
		} else {
			log.Printf("skip %q: status %d", id, resp.StatusCode)
			skipped++
		}
	}

	log.Printf("done: %d recorded, %d skipped", recorded, skipped)
}
