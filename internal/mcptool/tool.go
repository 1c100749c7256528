// Package mcptool exposes evaluation generation as an MCP tool.
package mcptool

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	z "github.com/Oudwins/zog"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/sirupsen/logrus"
	"github.com/ukaji3/evalsheet-go/pkg/evalsheet"
	"github.com/ukaji3/evalsheet-go/pkg/evalsheet/workbook"
)

// ToolName is the name clients call.
const ToolName = "generate_evaluation"

// GenerateArguments are the generate_evaluation tool arguments.
type GenerateArguments struct {
	InputPath    string `zog:"inputPath"`
	TemplatePath string `zog:"templatePath"`
	OutputPath   string `zog:"outputPath"`
	Format       string `zog:"format"`
	RosterPath   string `zog:"rosterPath"`
}

var generateArgumentsSchema = z.Struct(z.Shape{
	"inputPath":    z.String().Required(),
	"templatePath": z.String().Required(),
	"outputPath":   z.String().Required(),
	"format":       z.String().OneOf([]string{"xlsx", "xlsm"}),
	"rosterPath":   z.String(),
})

// NewServer creates an MCP server with the generate_evaluation tool.
func NewServer(version string, opts evalsheet.Options) *server.MCPServer {
	s := server.NewMCPServer("evalsheet", version)
	AddGenerateTool(s, opts)
	return s
}

// AddGenerateTool registers generate_evaluation on s. Inputs are always
// validated before generation.
func AddGenerateTool(s *server.MCPServer, opts evalsheet.Options) {
	opts.Strict = true
	h := &generateHandler{opts: opts}
	s.AddTool(mcp.NewTool(ToolName,
		mcp.WithDescription("Fill an evaluation template with grading data from a JSON file and save it as a protected workbook"),
		mcp.WithString("inputPath",
			mcp.Required(),
			mcp.Description("Absolute path to the evaluation JSON (grupo, asignatura, maestro, ponderaciones, alumnos)"),
		),
		mcp.WithString("templatePath",
			mcp.Required(),
			mcp.Description("Absolute path to the template workbook"),
		),
		mcp.WithString("outputPath",
			mcp.Required(),
			mcp.Description("Absolute path of the workbook to write; .xlsm keeps macros"),
		),
		mcp.WithString("format",
			mcp.Description("Output format, xlsx or xlsm. Defaults to the output file extension"),
		),
		mcp.WithString("rosterPath",
			mcp.Description("Absolute path to a roster workbook (id in column C, name in column D) replacing the input's students"),
		),
	), WithRecovery(h.handle))
}

type generateHandler struct {
	opts evalsheet.Options
}

func (h *generateHandler) handle(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := GenerateArguments{}
	if issues := generateArgumentsSchema.Parse(request.Params.Arguments, &args); len(issues) != 0 {
		return newToolResultZogIssueMap(issues), nil
	}
	paths := []string{args.InputPath, args.TemplatePath, args.OutputPath}
	if args.RosterPath != "" {
		paths = append(paths, args.RosterPath)
	}
	for _, p := range paths {
		if !filepath.IsAbs(p) {
			return mcp.NewToolResultError(fmt.Sprintf("path must be absolute: %s", p)), nil
		}
	}

	format, err := workbook.ParseFormat(args.Format)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	opts := h.opts
	opts.Format = format
	opts.Roster = args.RosterPath
	opts.Logger = h.logger().WithField("tool", ToolName)

	if err := evalsheet.Generate(ctx, args.InputPath, args.TemplatePath, args.OutputPath, opts); err != nil {
		var verr *evalsheet.ValidationError
		switch {
		case errors.As(err, &verr),
			errors.Is(err, evalsheet.ErrInputNotFound),
			errors.Is(err, evalsheet.ErrInvalidJSON),
			errors.Is(err, evalsheet.ErrTemplateNotFound),
			errors.Is(err, evalsheet.ErrFileNotFound),
			errors.Is(err, evalsheet.ErrNoStudents),
			errors.Is(err, workbook.ErrFormatMismatch):
			return mcp.NewToolResultError(err.Error()), nil
		default:
			return nil, err
		}
	}

	output := args.OutputPath
	if f, err := workbook.FormatFromPath(output, format); err == nil {
		output = evalsheet.OutputPath(output, f)
	}
	result := "# Notice\n"
	result += fmt.Sprintf("Evaluation workbook generated: %s\n", output)
	return mcp.NewToolResultText(result), nil
}

func (h *generateHandler) logger() *logrus.Entry {
	if h.opts.Logger != nil {
		return h.opts.Logger
	}
	return logrus.NewEntry(logrus.StandardLogger())
}

func newToolResultZogIssueMap(issues z.ZogIssueMap) *mcp.CallToolResult {
	keys := make([]string, 0, len(issues))
	for key := range issues {
		if !strings.HasPrefix(key, "$") {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString("Invalid arguments:\n")
	for _, key := range keys {
		for _, issue := range issues[key] {
			fmt.Fprintf(&b, "- %s: %s\n", key, issue.Message)
		}
	}
	return mcp.NewToolResultError(b.String())
}
