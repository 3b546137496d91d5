package workflow

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dukex/inboxflow/pkg/httpcall"
	"github.com/dukex/inboxflow/pkg/models"
	"github.com/dukex/inboxflow/pkg/template"
	"github.com/oliveagle/jsonpath"
)

// executeHTTP calls the configured endpoint. A failed call records http_error, runs the
// onError actions and fails the run without resolving a next node.
func (e *Executor) executeHTTP(
	ctx context.Context,
	r *run,
	node *models.Node,
	config *models.HTTPConfig,
	step *models.ExecutionStep,
) (string, error) {
	request, err := buildRequest(config, r.ectx.Variables)
	if err != nil {
		return "", err
	}

	logger := r.logger.With("node_id", node.ID, "method", request.Method, "url", request.URL)
	logger.DebugContext(ctx, "Calling HTTP endpoint")

	response, err := e.deps.HTTP.Do(ctx, request)
	if err != nil {
		step.Action = models.StepActionHTTPError
		step.Result = map[string]any{"error": err.Error()}

		var httpErr *httpcall.HTTPError
		if errors.As(err, &httpErr) {
			step.Result["statusCode"] = httpErr.StatusCode
		}

		logger.WarnContext(ctx, "HTTP request failed", "error", err)

		if actionErr := e.runActions(ctx, r, config.OnError, map[string]any{"error": err.Error()}); actionErr != nil {
			logger.WarnContext(ctx, "onError actions failed", "error", actionErr)
		}

		return "", fmt.Errorf("http request to %s failed: %w", request.URL, err)
	}

	step.Action = models.StepActionHTTPSuccess
	step.Result = map[string]any{
		"statusCode": response.StatusCode,
		"body":       response.Body,
	}

	for responseKey, variable := range config.ResponseMapping {
		value, ok := lookupResponse(response.Body, responseKey)
		if !ok {
			logger.DebugContext(ctx, "Response mapping key not found", "key", responseKey)

			continue
		}

		r.ectx.Variables[variable] = value
	}

	data, _ := response.Body.(map[string]any)
	if err := e.runActions(ctx, r, config.OnSuccess, data); err != nil {
		return "", err
	}

	return r.flow.NextNodeID(node.ID), nil
}

func buildRequest(config *models.HTTPConfig, vars map[string]any) (httpcall.Request, error) {
	request := httpcall.Request{
		Method:  strings.ToUpper(config.Method),
		URL:     template.Interpolate(config.URL, vars),
		Timeout: httpcall.DefaultTimeout,
	}

	if request.Method == "" {
		request.Method = "GET"
	}

	if config.Timeout > 0 {
		request.Timeout = time.Duration(config.Timeout) * time.Millisecond
	}

	if len(config.Headers) > 0 {
		request.Headers = make(map[string]string, len(config.Headers))
		for key, value := range config.Headers {
			request.Headers[key] = template.Interpolate(value, vars)
		}
	}

	switch body := config.Body.(type) {
	case nil:
	case string:
		request.Body = template.Interpolate(body, vars)
	default:
		data, err := json.Marshal(body)
		if err != nil {
			return request, fmt.Errorf("failed to encode request body: %w", err)
		}

		request.Body = string(data)
	}

	return request, nil
}

// lookupResponse reads a top level key of the response body, or a JSONPath expression
// when the key starts with "$".
func lookupResponse(body any, key string) (any, bool) {
	if strings.HasPrefix(key, "$") {
		value, err := jsonpath.JsonPathLookup(body, key)
		if err != nil {
			return nil, false
		}

		return value, true
	}

	object, ok := body.(map[string]any)
	if !ok {
		return nil, false
	}

	value, ok := object[key]

	return value, ok
}
