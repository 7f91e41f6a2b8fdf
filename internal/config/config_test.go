package config_test

import (
	"os"
	"path/filepath"
	"testing"

	. "github.com/onsi/gomega"

	"github.com/aanand-mishra/alunos-api/internal/config"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
	return path
}

func TestLoad_SQLiteDefaults(t *testing.T) {
	g := NewWithT(t)
	path := writeFile(t, "local.yaml", `
env: "dev"
http_server:
  address: "localhost:8082"
storage:
  path: "storage/storage.db"
`)

	cfg, err := config.Load(path)

	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(cfg.Env).To(Equal("dev"))
	g.Expect(cfg.HTTPServer.Addr).To(Equal("localhost:8082"))
	g.Expect(cfg.Storage.Driver).To(Equal(config.DriverSQLite))
	g.Expect(cfg.Storage.Collection).To(Equal("alunos"))
}

func TestLoad_EnvOverrides(t *testing.T) {
	g := NewWithT(t)
	t.Setenv("STORAGE_DRIVER", "mongo")
	t.Setenv("MONGO_URI", "mongodb://localhost:27017")
	t.Setenv("MONGO_DATABASE", "escola")
	path := writeFile(t, "local.yaml", `
env: "prod"
http_server:
  address: ":8080"
`)

	cfg, err := config.Load(path)

	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(cfg.Storage.Driver).To(Equal(config.DriverMongo))
	g.Expect(cfg.Storage.MongoURI).To(Equal("mongodb://localhost:27017"))
	g.Expect(cfg.Storage.MongoDatabase).To(Equal("escola"))
}

func TestLoad_Invalid(t *testing.T) {
	for name, content := range map[string]string{
		"unknown driver": `
env: "dev"
http_server:
  address: ":8080"
storage:
  driver: "firestore"
  path: "x.db"
`,
		"mongo without uri": `
env: "dev"
http_server:
  address: ":8080"
storage:
  driver: "mongo"
  mongo_database: "escola"
`,
		"bolt without path": `
env: "dev"
http_server:
  address: ":8080"
storage:
  driver: "bolt"
`,
		"missing address": `
env: "dev"
storage:
  path: "x.db"
`,
	} {
		t.Run(name, func(t *testing.T) {
			g := NewWithT(t)

			_, err := config.Load(writeFile(t, "bad.yaml", content))

			g.Expect(err).To(HaveOccurred())
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	g := NewWithT(t)

	_, err := config.Load(filepath.Join(t.TempDir(), "nope.yaml"))

	g.Expect(err).To(MatchError(os.ErrNotExist))
}

func TestLoadDotEnv(t *testing.T) {
	g := NewWithT(t)
	path := writeFile(t, ".env", "ALUNOS_TEST_FROM_DOTENV=sim\n")
	t.Setenv("ALUNOS_TEST_FROM_DOTENV", "")
	os.Unsetenv("ALUNOS_TEST_FROM_DOTENV")

	g.Expect(config.LoadDotEnv(path)).To(Succeed())
	g.Expect(os.Getenv("ALUNOS_TEST_FROM_DOTENV")).To(Equal("sim"))

	g.Expect(config.LoadDotEnv(filepath.Join(t.TempDir(), ".env"))).To(Succeed(),
		"a missing .env is not an error")
}
