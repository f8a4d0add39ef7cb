package mcpadapter

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/kirillkom/docs-manager/internal/core/domain"
	"github.com/kirillkom/docs-manager/internal/core/ports"
)

const serverName = "docs-manager"

// Server exposes classification and library tools to MCP clients.
type Server struct {
	classifier ports.TextClassifier
	library    ports.DocumentLibrary
	logger     *slog.Logger
}

func NewServer(classifier ports.TextClassifier, library ports.DocumentLibrary, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{classifier: classifier, library: library, logger: logger}
}

func (s *Server) MCPServer(version string) *server.MCPServer {
	srv := server.NewMCPServer(serverName, version, server.WithToolCapabilities(false))

	srv.AddTool(mcp.NewTool("classify_text",
		mcp.WithDescription("Classify recognized document text as Aadhaar, PAN, Bill or Other and preview where it would be filed."),
		mcp.WithString("text", mcp.Required(), mcp.Description("Raw OCR text of the document")),
		mcp.WithString("mime_type", mcp.Description("MIME type of the source file, image/jpeg when omitted")),
	), s.classifyText)

	srv.AddTool(mcp.NewTool("list_documents",
		mcp.WithDescription("List filed documents, latest first."),
		mcp.WithString("query", mcp.Description("Case-insensitive match on file or folder name")),
		mcp.WithString("tag", mcp.Enum("all", "id", "bills", "others"), mcp.Description("Document group filter")),
	), s.listDocuments)

	srv.AddTool(mcp.NewTool("rename_document",
		mcp.WithDescription("Rename a filed document inside its folder."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Document path relative to the documents root")),
		mcp.WithString("new_name", mcp.Required(), mcp.Description("New bare file name")),
	), s.renameDocument)

	return srv
}

// ServeStdio blocks serving MCP over stdin/stdout.
func (s *Server) ServeStdio(version string) error {
	return server.ServeStdio(s.MCPServer(version))
}

func (s *Server) classifyText(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	text, err := req.RequireString("text")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	preview, err := s.classifier.Preview(ctx, text, req.GetString("mime_type", ""))
	if err != nil {
		return s.toolError("classify_text", err), nil
	}
	return jsonResult(preview)
}

func (s *Server) listDocuments(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	tag, ok := domain.ParseLibraryTag(req.GetString("tag", ""))
	if !ok {
		return mcp.NewToolResultError("tag must be one of all, id, bills, others"), nil
	}
	docs, err := s.library.List(ctx, domain.LibraryFilter{Query: req.GetString("query", ""), Tag: tag})
	if err != nil {
		return s.toolError("list_documents", err), nil
	}
	if docs == nil {
		docs = []domain.StoredDocument{}
	}
	return jsonResult(map[string]any{"documents": docs})
}

func (s *Server) renameDocument(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	key, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	newName, err := req.RequireString("new_name")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	doc, err := s.library.Rename(ctx, key, newName)
	if err != nil {
		return s.toolError("rename_document", err), nil
	}
	return jsonResult(doc)
}

func (s *Server) toolError(tool string, err error) *mcp.CallToolResult {
	if domain.IsKind(err, domain.ErrStorage) {
		s.logger.Error("mcp tool failed", "tool", tool, "error", err)
		return mcp.NewToolResultError("storage operation failed")
	}
	s.logger.Warn("mcp tool rejected", "tool", tool, "error", err)
	return mcp.NewToolResultError(err.Error())
}

func jsonResult(payload any) (*mcp.CallToolResult, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return mcp.NewToolResultText(string(data)), nil
}
