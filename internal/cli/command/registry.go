package command

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Registry returns all CLI commands keyed by "service action".
func Registry() map[string]Command {
	commands := []Command{
		{
			Service:      "user",
			Action:       "register",
			Method:       "POST",
			PathTemplate: "/user/register",
			Fields: []Field{
				{Name: "first_name", Aliases: []string{"name"}, Prompt: "first name", Type: FieldString, Required: true},
				{Name: "email", Prompt: "email", Type: FieldString, Required: true},
				{Name: "password", Prompt: "password", Type: FieldString, Required: true},
			},
		},
		{
			Service:      "user",
			Action:       "login",
			Method:       "POST",
			PathTemplate: "/user/login",
			Fields: []Field{
				{Name: "email", Prompt: "email", Type: FieldString, Required: true},
				{Name: "password", Prompt: "password", Type: FieldString, Required: true},
			},
		},
		{
			Service:      "user",
			Action:       "admin-login",
			Method:       "POST",
			PathTemplate: "/user/admin/login",
			Fields: []Field{
				{Name: "email", Prompt: "email", Type: FieldString, Required: true},
				{Name: "password", Prompt: "password", Type: FieldString, Required: true},
			},
		},
		{
			Service:      "user",
			Action:       "admin-register",
			Method:       "POST",
			PathTemplate: "/user/admin/register",
			RequiresAuth: true,
			Fields: []Field{
				{Name: "first_name", Aliases: []string{"name"}, Prompt: "first name", Type: FieldString, Required: true},
				{Name: "email", Prompt: "email", Type: FieldString, Required: true},
				{Name: "password", Prompt: "password", Type: FieldString, Required: true},
			},
		},
		{
			Service:      "user",
			Action:       "logout",
			Method:       "POST",
			PathTemplate: "/user/logout",
			RequiresAuth: true,
		},
		{
			Service:      "user",
			Action:       "check",
			Method:       "GET",
			PathTemplate: "/user/check",
			RequiresAuth: true,
		},
		{
			Service:      "user",
			Action:       "delete",
			Method:       "DELETE",
			PathTemplate: "/user/profile",
			RequiresAuth: true,
		},
		{
			Service:      "problem",
			Action:       "list",
			Method:       "GET",
			PathTemplate: "/problem",
		},
		{
			Service:      "problem",
			Action:       "solved",
			Method:       "GET",
			PathTemplate: "/problem/solved",
			RequiresAuth: true,
		},
		{
			Service:      "problem",
			Action:       "get",
			Method:       "GET",
			PathTemplate: "/problem/:id",
			Fields: []Field{
				{Name: "id", Prompt: "problem_id", Type: FieldInt64, Required: true},
			},
		},
		{
			Service:      "problem",
			Action:       "create",
			Method:       "POST",
			PathTemplate: "/problem",
			RequiresAuth: true,
			Fields: []Field{
				{Name: "json", Prompt: "problem json", Type: FieldJSON, Required: false},
				{Name: "json_file", Prompt: "problem json file", Type: FieldFile, Required: false},
			},
		},
		{
			Service:      "problem",
			Action:       "update",
			Method:       "PUT",
			PathTemplate: "/problem/:id",
			RequiresAuth: true,
			Fields: []Field{
				{Name: "id", Prompt: "problem_id", Type: FieldInt64, Required: true},
				{Name: "json", Prompt: "problem json", Type: FieldJSON, Required: false},
				{Name: "json_file", Prompt: "problem json file", Type: FieldFile, Required: false},
			},
		},
		{
			Service:      "problem",
			Action:       "delete",
			Method:       "DELETE",
			PathTemplate: "/problem/:id",
			RequiresAuth: true,
			Fields: []Field{
				{Name: "id", Prompt: "problem_id", Type: FieldInt64, Required: true},
			},
		},
		{
			Service:      "submit",
			Action:       "create",
			Method:       "POST",
			PathTemplate: "/problem/:id/submit",
			RequiresAuth: true,
			Fields: []Field{
				{Name: "id", Aliases: []string{"problem_id"}, Prompt: "problem_id", Type: FieldInt64, Required: true},
				{Name: "language", Aliases: []string{"lang"}, Prompt: "language", Type: FieldString, Required: true},
				{Name: "source_code", Prompt: "source code", Type: FieldString, Required: false},
				{Name: "source_file", Prompt: "source file", Type: FieldFile, Required: false},
			},
		},
		{
			Service:      "submit",
			Action:       "run",
			Method:       "POST",
			PathTemplate: "/problem/:id/run",
			RequiresAuth: true,
			Fields: []Field{
				{Name: "id", Aliases: []string{"problem_id"}, Prompt: "problem_id", Type: FieldInt64, Required: true},
				{Name: "language", Aliases: []string{"lang"}, Prompt: "language", Type: FieldString, Required: true},
				{Name: "source_code", Prompt: "source code", Type: FieldString, Required: false},
				{Name: "source_file", Prompt: "source file", Type: FieldFile, Required: false},
			},
		},
		{
			Service:      "submit",
			Action:       "list",
			Method:       "GET",
			PathTemplate: "/problem/:id/submissions",
			RequiresAuth: true,
			Fields: []Field{
				{Name: "id", Aliases: []string{"problem_id"}, Prompt: "problem_id", Type: FieldInt64, Required: true},
			},
		},
		{
			Service:      "hint",
			Action:       "ask",
			Method:       "POST",
			PathTemplate: "/ai/hint",
			RequiresAuth: true,
			Fields: []Field{
				{Name: "problem_id", Prompt: "problem_id", Type: FieldInt64, Required: true},
				{Name: "message", Prompt: "question", Type: FieldString, Required: true},
			},
		},
	}

	result := make(map[string]Command, len(commands))
	for _, cmd := range commands {
		key := fmt.Sprintf("%s %s", cmd.Service, cmd.Action)
		result[key] = cmd
	}
	return result
}

// BuildRequest creates an HTTP request spec for the command.
func BuildRequest(cmd Command, params Params) (RequestSpec, error) {
	params.Canonicalize(cmd.Fields)
	path, err := buildPath(cmd.PathTemplate, params)
	if err != nil {
		return RequestSpec{}, err
	}

	var body []byte
	if cmd.Method != "GET" && cmd.Method != "DELETE" {
		payload, err := buildPayload(cmd, params)
		if err != nil {
			return RequestSpec{}, err
		}
		if payload != nil {
			body, err = json.Marshal(payload)
			if err != nil {
				return RequestSpec{}, fmt.Errorf("marshal request body failed: %w", err)
			}
		}
	}

	return RequestSpec{
		Method: cmd.Method,
		Path:   path,
		Body:   body,
	}, nil
}

func buildPath(template string, params Params) (string, error) {
	path := template
	placeholder := ":id"
	if strings.Contains(path, placeholder) {
		value := params.Get("id")
		if value == "" {
			return "", fmt.Errorf("missing path parameter: id")
		}
		path = strings.ReplaceAll(path, placeholder, value)
	}
	return path, nil
}

func buildPayload(cmd Command, params Params) (interface{}, error) {
	switch cmd.Service {
	case "user":
		switch cmd.Action {
		case "register", "admin-register":
			return map[string]string{
				"firstName": params.Get("first_name"),
				"emailId":   params.Get("email"),
				"password":  params.Get("password"),
			}, nil
		case "login", "admin-login":
			return map[string]string{
				"emailId":  params.Get("email"),
				"password": params.Get("password"),
			}, nil
		}
	case "problem":
		switch cmd.Action {
		case "create", "update":
			raw, err := jsonOrFile(params, "json", "json_file")
			if err != nil {
				return nil, err
			}
			return raw, nil
		}
	case "submit":
		switch cmd.Action {
		case "create", "run":
			return buildEvalPayload(params)
		}
	case "hint":
		problemID, err := ParseInt64(params.Get("problem_id"))
		if err != nil {
			return nil, fmt.Errorf("invalid problem_id: %w", err)
		}
		return map[string]interface{}{
			"problemId": problemID,
			"messages": []map[string]string{
				{"role": "user", "content": params.Get("message")},
			},
		}, nil
	}
	return nil, nil
}

func buildEvalPayload(params Params) (interface{}, error) {
	sourceCode := params.Get("source_code")
	if sourceCode == "" && params.Get("source_file") != "" {
		data, err := ReadFile(params.Get("source_file"))
		if err != nil {
			return nil, err
		}
		sourceCode = data
	}
	if sourceCode == "" {
		return nil, fmt.Errorf("source_code or source_file is required")
	}
	return map[string]string{
		"language": params.Get("language"),
		"code":     sourceCode,
	}, nil
}

func jsonOrFile(params Params, key, fileKey string) (json.RawMessage, error) {
	value := params.Get(key)
	if value == "" && params.Get(fileKey) != "" {
		data, err := ReadFile(params.Get(fileKey))
		if err != nil {
			return nil, err
		}
		value = data
	}
	if value == "" {
		return nil, fmt.Errorf("%s or %s is required", key, fileKey)
	}
	return ParseJSON(value)
}
