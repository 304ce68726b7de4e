// Seeds a local sync database with planner fixtures so the service can be
// exercised without the CRUD collaborator. Task ids are assigned sequentially;
// re-running against the same database upserts the same rows.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"plansync/internal/database"
	"plansync/internal/models"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

type seedFile struct {
	Clients []seedClient `yaml:"clients"`
	Users   []seedUser   `yaml:"users"`
}

type seedClient struct {
	Name     string        `yaml:"name"`
	Projects []seedProject `yaml:"projects"`
}

type seedProject struct {
	Name       string `yaml:"name"`
	CommonName string `yaml:"common_name"`
}

type seedUser struct {
	ID    int64      `yaml:"id"`
	Tasks []seedTask `yaml:"tasks"`
}

type seedTask struct {
	Date        string `yaml:"date"`
	Type        string `yaml:"type"`
	Label       string `yaml:"label"`
	Description string `yaml:"description"`
	Project     string `yaml:"project"`
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	var (
		seedPath = flag.String("seed", "configs/seed.yaml", "path to seed yaml")
		dbPath   = flag.String("db", "./data/plansync.db", "path to sqlite db")
	)
	flag.Parse()

	data, err := os.ReadFile(*seedPath)
	if err != nil {
		return fmt.Errorf("read seed: %w", err)
	}
	var seed seedFile
	if err = yaml.Unmarshal(data, &seed); err != nil {
		return fmt.Errorf("parse seed: %w", err)
	}
	if len(seed.Users) == 0 {
		return fmt.Errorf("no users in yaml")
	}

	db, err := database.NewDB(*dbPath, &logger)
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	projectIDs := make(map[string]int64)
	clients := 0
	projects := 0
	for _, c := range seed.Clients {
		if c.Name == "" {
			continue
		}
		client := models.Client{Name: c.Name}
		if err = db.CreateClient(ctx, &client); err != nil {
			return fmt.Errorf("create client %s: %w", c.Name, err)
		}
		clients++

		for _, p := range c.Projects {
			project := models.Project{Name: p.Name, CommonName: p.CommonName, ClientID: &client.ID}
			if err = db.CreateProject(ctx, &project); err != nil {
				return fmt.Errorf("create project %s: %w", p.Name, err)
			}
			projectIDs[p.Name] = project.ID
			projects++
		}
	}

	tasks := 0
	nextTaskID := int64(1)
	for _, u := range seed.Users {
		for _, st := range u.Tasks {
			date, err := time.Parse("2006-01-02", st.Date)
			if err != nil {
				return fmt.Errorf("task date %q: %w", st.Date, err)
			}

			task := models.Task{
				ID:          nextTaskID,
				UserID:      u.ID,
				Date:        date,
				Type:        st.Type,
				Label:       st.Label,
				Description: st.Description,
			}
			if st.Project != "" {
				id, ok := projectIDs[st.Project]
				if !ok {
					return fmt.Errorf("task references unknown project %q", st.Project)
				}
				task.ProjectID = &id
			}

			if err = db.UpsertTask(ctx, &task); err != nil {
				return fmt.Errorf("upsert task %d: %w", task.ID, err)
			}
			nextTaskID++
			tasks++
		}
	}

	fmt.Printf("done: clients=%d projects=%d tasks=%d\n", clients, projects, tasks)
	return nil
}
