package restaurant

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// Server exposes the store over MCP.
type Server struct {
	store     *Store
	logger    *slog.Logger
	mcpServer *server.MCPServer
}

// NewServer creates the tool server and registers the four restaurant tools.
func NewServer(store *Store, logger *slog.Logger) *Server {
	s := &Server{
		store:     store,
		logger:    logger,
		mcpServer: server.NewMCPServer("bistro-mcp", "1.0.0"),
	}
	s.registerTools()
	return s
}

// ServeStdio runs the server on stdin/stdout until the client hangs up.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}

var placeOrderSchema = json.RawMessage(`{
  "type": "object",
  "properties": {
    "restaurant_id": {
      "type": "string",
      "description": "The ID of the restaurant"
    },
    "items": {
      "type": "array",
      "items": {
        "type": "object",
        "properties": {
          "item_id": {"type": "string"},
          "quantity": {"type": "integer"}
        }
      },
      "description": "List of items to order"
    },
    "delivery_address": {
      "type": "string",
      "description": "Delivery address"
    },
    "payment_method": {
      "type": "string",
      "description": "Payment method (must be 'cod' for cash on delivery)"
    }
  },
  "required": ["restaurant_id", "items", "delivery_address", "payment_method"]
}`)

func (s *Server) registerTools() {
	s.mcpServer.AddTool(mcp.NewTool("search_restaurants",
		mcp.WithDescription("Search for restaurants by cuisine type or name"),
		mcp.WithString("query", mcp.Required(),
			mcp.Description("Search query (cuisine or restaurant name)")),
	), s.handleSearch)

	s.mcpServer.AddTool(mcp.NewTool("get_restaurant_menu",
		mcp.WithDescription("Get the menu for a specific restaurant"),
		mcp.WithString("restaurant_id", mcp.Required(),
			mcp.Description("The ID of the restaurant")),
	), s.handleMenu)

	s.mcpServer.AddTool(mcp.NewToolWithRawSchema("place_order",
		"Place an order with cash on delivery payment", placeOrderSchema,
	), s.handlePlaceOrder)

	s.mcpServer.AddTool(mcp.NewTool("get_order_status",
		mcp.WithDescription("Get the status of a placed order"),
		mcp.WithString("order_id", mcp.Required(),
			mcp.Description("The ID of the order")),
	), s.handleOrderStatus)
}

func (s *Server) handleSearch(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query := req.GetString("query", "")
	results := s.store.Search(query)
	s.logger.Debug("search_restaurants", "query", query, "hits", len(results))
	return jsonResult(results)
}

func (s *Server) handleMenu(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	menu, err := s.store.Menu(req.GetString("restaurant_id", ""))
	if err != nil {
		return errorResult(err)
	}
	return jsonResult(menu)
}

func (s *Server) handlePlaceOrder(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var args struct {
		RestaurantID    string          `json:"restaurant_id"`
		Items           []ItemSelection `json:"items"`
		DeliveryAddress string          `json:"delivery_address"`
		PaymentMethod   string          `json:"payment_method"`
	}
	if err := req.BindArguments(&args); err != nil {
		return errorResult(fmt.Errorf("invalid arguments: %v", err))
	}

	order, err := s.store.PlaceOrder(args.RestaurantID, args.Items, args.DeliveryAddress, args.PaymentMethod)
	if err != nil {
		return errorResult(err)
	}
	s.logger.Info("order placed", "order_id", order.OrderID, "restaurant", order.Restaurant, "total", order.Total)
	return jsonResult(order)
}

func (s *Server) handleOrderStatus(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	order, err := s.store.OrderStatus(req.GetString("order_id", ""))
	if err != nil {
		return errorResult(err)
	}
	return jsonResult(order)
}

// jsonResult marshals a payload to pretty JSON text content.
func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, err
	}
	return mcp.NewToolResultText(string(data)), nil
}

// errorResult encodes a logical failure as an {"error": ...} payload. The
// call itself succeeds at the protocol level; the model reads the payload.
func errorResult(err error) (*mcp.CallToolResult, error) {
	data, mErr := json.Marshal(map[string]string{"error": err.Error()})
	if mErr != nil {
		return nil, mErr
	}
	return mcp.NewToolResultText(string(data)), nil
}
