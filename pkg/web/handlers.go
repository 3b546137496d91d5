// Package web provides HTTP handlers and REST API endpoints for flows and executions.
package web

import (
	"net/http"

	"github.com/dukex/inboxflow/pkg/models"
	"github.com/dukex/inboxflow/pkg/services"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
)

type APIHandlers struct {
	flowService *services.Flows
	runner      *services.Runner
	validator   *validator.Validate
}

func NewAPIHandlers(flowService *services.Flows, runner *services.Runner, validator *validator.Validate) *APIHandlers {
	return &APIHandlers{
		flowService: flowService,
		runner:      runner,
		validator:   validator,
	}
}

// Routes mounts every endpoint on router.
func (h *APIHandlers) Routes(router fiber.Router) {
	router.Get("/health", h.HealthCheck)

	f := router.Group("/flows")
	f.Get("/", h.GetFlows)
	f.Get("/:id", h.GetFlow)
	f.Put("/:id", h.SaveFlow)
	f.Delete("/:id", h.DeleteFlow)
	f.Get("/:id/executions", h.GetFlowExecutions)
	f.Post("/:id/executions", h.ExecuteFlow)

	e := router.Group("/executions")
	e.Get("/:id", h.GetExecution)
	e.Post("/:id/answers", h.AnswerExecution)

	router.Post("/channels/:channel/inbound", h.Inbound)
}

func (h *APIHandlers) HealthCheck(c fiber.Ctx) error {
	repositoryCheck, ok := h.runner.HealthCheck(c.Context())

	status := "unhealthy"
	message := "Inboxflow API is unhealthy"
	httpStatus := http.StatusInternalServerError

	if ok {
		status = "healthy"
		message = "Inboxflow API is healthy"
		httpStatus = http.StatusOK
	}

	return c.Status(httpStatus).JSON(fiber.Map{
		"status":  status,
		"message": message,
		"checkers": fiber.Map{
			"repository": repositoryCheck,
		},
	})
}

func (h *APIHandlers) GetFlows(c fiber.Ctx) error {
	flows, err := h.flowService.List(c.Context())
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(flows)
}

func (h *APIHandlers) GetFlow(c fiber.Ctx) error {
	flow, err := h.flowService.Get(c.Context(), c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(flow)
}

func (h *APIHandlers) SaveFlow(c fiber.Ctx) error {
	flow, err := h.flowService.Save(c.Context(), c.Params("id"), c.Body())
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(flow)
}

func (h *APIHandlers) DeleteFlow(c fiber.Ctx) error {
	if err := h.flowService.Delete(c.Context(), c.Params("id")); err != nil {
		return handleServiceError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

func (h *APIHandlers) GetFlowExecutions(c fiber.Ctx) error {
	records, err := h.runner.Executions(c.Context(), c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	response := make([]ExecutionResponse, 0, len(records))
	for _, record := range records {
		response = append(response, newExecutionResponse(record))
	}

	return c.JSON(response)
}

func (h *APIHandlers) ExecuteFlow(c fiber.Ctx) error {
	var req ExecuteFlowRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	record, err := h.runner.Execute(c.Context(), services.ExecuteRequest{
		FlowID:      c.Params("id"),
		Contact:     req.Contact,
		ChannelID:   req.ChannelID,
		Channel:     req.Channel,
		TriggerData: req.TriggerData,
	})
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(newExecutionResponse(record))
}

func (h *APIHandlers) GetExecution(c fiber.Ctx) error {
	record, err := h.runner.Execution(c.Context(), c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(newExecutionResponse(record))
}

func (h *APIHandlers) AnswerExecution(c fiber.Ctx) error {
	var req AnswerRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	record, err := h.runner.Resume(c.Context(), c.Params("id"), req.Answer)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(newExecutionResponse(record))
}

func (h *APIHandlers) Inbound(c fiber.Ctx) error {
	var req InboundRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	records, err := h.runner.HandleInbound(c.Context(), services.InboundRequest{
		Channel:   models.ChannelType(c.Params("channel")),
		ChannelID: req.ChannelID,
		Payload:   req.Payload,
		Event:     req.Event,
		PostID:    req.PostID,
		Contact:   req.Contact,
	})
	if err != nil {
		return handleServiceError(c, err)
	}

	response := make([]ExecutionResponse, 0, len(records))
	for _, record := range records {
		response = append(response, newExecutionResponse(record))
	}

	return c.Status(fiber.StatusAccepted).JSON(response)
}
