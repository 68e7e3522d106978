package app

import (
	"github.com/yungbote/labtwin-backend/internal/observability"
	"github.com/yungbote/labtwin-backend/internal/platform/logger"
	"github.com/yungbote/labtwin-backend/internal/services"
)

type Services struct {
	Twin   services.TwinService
	Hint   services.HintService
	Usage  services.UsageService
	Status services.StatusService
}

func wireServices(log *logger.Logger, clients Clients, r Repos, metrics *observability.Metrics) Services {
	log.Info("Wiring services...")
	twin := services.NewTwinService(
		clients.DB,
		log,
		r.Student,
		r.Activity,
		r.HintRequest,
		r.StudentTwin,
		r.Competency,
		clients.Bus,
		metrics,
	)
	hint := services.NewHintService(
		clients.DB,
		log,
		r.Student,
		r.Activity,
		r.Submission,
		r.HintRequest,
		r.AIUsage,
		r.StudentTwin,
		r.Competency,
		twin,
		clients.Router,
		clients.Prompts,
		clients.Bus,
		metrics,
	)
	return Services{
		Twin:   twin,
		Hint:   hint,
		Usage:  services.NewUsageService(clients.DB, log, r.AIUsage),
		Status: services.NewStatusService(clients.Router),
	}
}
