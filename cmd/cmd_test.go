package cmd

import (
	"os"
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

const testConfig = `
http_server:
  port: 9090
  read_header_timeout: 5s
  read_timeout: 15s
database:
  source: postgres://localhost/travel
  max_open_conns: 4
  max_idle_conns: 2
security:
  jwt_secret: 0123456789abcdef0123456789abcdef
  jwt_refresh_secret: fedcba9876543210fedcba9876543210
  access_token_duration: 15m
workflow:
  daily_vehicle_limit: 3
rbac:
  admin_emails: [transport@univ.edu]
`

var _ = Describe("loadConfig", func() {
	var dir string

	BeforeEach(func() {
		dir = GinkgoT().TempDir()
		Expect(os.WriteFile(filepath.Join(dir, "config.yml"), []byte(testConfig), 0o600)).To(Succeed())
		GinkgoT().Setenv("APP_ENV", "test")
		GinkgoT().Setenv("DOCKER_ENV", "")
	})

	It("reads config.yml and keeps workflow defaults the file leaves out", func() {
		cfg, err := loadConfig(dir)
		Expect(err).NotTo(HaveOccurred())
		Expect(cfg.Server.Port).To(Equal(9090))
		Expect(cfg.Security.AccessTokenDuration).To(Equal(15 * time.Minute))
		Expect(cfg.Workflow.DailyVehicleLimit).To(Equal(3))
		Expect(cfg.Workflow.RequireExecutive).To(BeTrue())
		Expect(cfg.Workflow.PresidentBudgetThreshold).To(Equal("50000"))
		Expect(cfg.RBAC.AdminEmails).To(ConsistOf("transport@univ.edu"))
	})

	It("lets ENV_ variables override the file", func() {
		GinkgoT().Setenv("ENV_HTTP_SERVER_PORT", "7070")
		cfg, err := loadConfig(dir)
		Expect(err).NotTo(HaveOccurred())
		Expect(cfg.Server.Port).To(Equal(7070))
	})

	It("rejects short signing secrets", func() {
		Expect(os.WriteFile(filepath.Join(dir, "config.yml"), []byte("database:\n  source: x\nsecurity:\n  jwt_secret: short\n"), 0o600)).To(Succeed())
		_, err := loadConfig(dir)
		Expect(err).To(MatchError(ContainSubstring("jwt_secret")))
	})

	It("reads the environment in production mode", func() {
		GinkgoT().Setenv("APP_ENV", "production")
		GinkgoT().Setenv("DB_SOURCE", "postgres://db/travel")
		GinkgoT().Setenv("JWT_SECRET", "0123456789abcdef0123456789abcdef")
		GinkgoT().Setenv("JWT_REFRESH_SECRET", "fedcba9876543210fedcba9876543210")
		GinkgoT().Setenv("RBAC_ADMIN_EMAILS", "a@univ.edu, b@univ.edu")
		cfg, err := loadConfig(dir)
		Expect(err).NotTo(HaveOccurred())
		Expect(cfg.Database.Source).To(Equal("postgres://db/travel"))
		Expect(cfg.RBAC.AdminEmails).To(Equal([]string{"a@univ.edu", "b@univ.edu"}))
	})
})

var _ = Describe("flag overrides", func() {
	It("prefers set flags over config values", func() {
		Expect(getStringFlag("", "cfg")).To(Equal("cfg"))
		Expect(getStringFlag("flag", "cfg")).To(Equal("flag"))
		Expect(getIntFlag(0, 4)).To(Equal(4))
		Expect(getIntFlag(8, 4)).To(Equal(8))
	})
})

var _ = Describe("root command", func() {
	It("registers every subcommand", func() {
		names := map[string]bool{}
		for _, c := range rootCmd.Commands() {
			names[c.Name()] = true
		}
		for _, want := range []string{"server", "migrate", "seed", "worker", "event", "export"} {
			Expect(names).To(HaveKey(want))
		}
	})
})
