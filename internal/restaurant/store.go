// Package restaurant implements the simulated food-ordering backend: a
// fixed restaurant catalog and an append-only in-memory order list, exposed
// to the orchestrator as MCP tools.
package restaurant

import (
	"errors"
	"fmt"
	"strings"
	"sync"
)

// Logical failures surfaced to the model as error payloads.
var (
	ErrRestaurantNotFound = errors.New("Restaurant not found")
	ErrOrderNotFound      = errors.New("Order not found")
	ErrPaymentMethod      = errors.New("Only Cash on Delivery (COD) is supported")
)

// MenuItem is one orderable dish.
type MenuItem struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Price int    `json:"price"`
}

// Restaurant is one catalog entry with its menu.
type Restaurant struct {
	ID           string     `json:"id"`
	Name         string     `json:"name"`
	Cuisine      string     `json:"cuisine"`
	Rating       float64    `json:"rating"`
	DeliveryTime string     `json:"delivery_time"`
	Menu         []MenuItem `json:"menu"`
}

// Menu is the get_restaurant_menu payload.
type Menu struct {
	Restaurant string     `json:"restaurant"`
	Menu       []MenuItem `json:"menu"`
}

// ItemSelection is one line of a place_order request.
type ItemSelection struct {
	ItemID   string `json:"item_id"`
	Quantity int    `json:"quantity"`
}

// OrderItem is one priced line of a placed order.
type OrderItem struct {
	Name     string `json:"name"`
	Quantity int    `json:"quantity"`
	Price    int    `json:"price"`
}

// Order is a placed order as returned by place_order and get_order_status.
type Order struct {
	OrderID           string      `json:"order_id"`
	Restaurant        string      `json:"restaurant"`
	Items             []OrderItem `json:"items"`
	Total             int         `json:"total"`
	DeliveryAddress   string      `json:"delivery_address"`
	PaymentMethod     string      `json:"payment_method"`
	Status            string      `json:"status"`
	EstimatedDelivery string      `json:"estimated_delivery"`
}

// Store holds the restaurant catalog and placed orders. The catalog is
// immutable; orders are append-only.
type Store struct {
	mu          sync.RWMutex
	restaurants []Restaurant
	orders      []Order
}

// NewStore creates a store seeded with the demo catalog.
func NewStore() *Store {
	return &Store{restaurants: defaultRestaurants()}
}

func defaultRestaurants() []Restaurant {
	return []Restaurant{
		{
			ID: "1", Name: "Pizza Palace", Cuisine: "Italian", Rating: 4.5, DeliveryTime: "30-40 mins",
			Menu: []MenuItem{
				{ID: "101", Name: "Margherita Pizza", Price: 299},
				{ID: "102", Name: "Pepperoni Pizza", Price: 399},
				{ID: "103", Name: "Veggie Supreme", Price: 349},
			},
		},
		{
			ID: "2", Name: "Burger Barn", Cuisine: "American", Rating: 4.2, DeliveryTime: "25-35 mins",
			Menu: []MenuItem{
				{ID: "201", Name: "Classic Burger", Price: 199},
				{ID: "202", Name: "Cheese Burger", Price: 249},
				{ID: "203", Name: "Veggie Burger", Price: 179},
			},
		},
		{
			ID: "3", Name: "Sushi Station", Cuisine: "Japanese", Rating: 4.7, DeliveryTime: "40-50 mins",
			Menu: []MenuItem{
				{ID: "301", Name: "California Roll", Price: 449},
				{ID: "302", Name: "Salmon Nigiri", Price: 399},
				{ID: "303", Name: "Vegetable Tempura", Price: 299},
			},
		},
		{
			ID: "4", Name: "Curry Corner", Cuisine: "Indian", Rating: 4.4, DeliveryTime: "35-45 mins",
			Menu: []MenuItem{
				{ID: "401", Name: "Chicken Tikka Masala", Price: 349},
				{ID: "402", Name: "Paneer Butter Masala", Price: 299},
				{ID: "403", Name: "Biryani", Price: 279},
			},
		},
	}
}

// Search returns restaurants whose name or cuisine contains the query,
// case-insensitive. An empty query matches everything.
func (s *Store) Search(query string) []Restaurant {
	q := strings.ToLower(query)
	results := make([]Restaurant, 0)
	for _, r := range s.restaurants {
		if strings.Contains(strings.ToLower(r.Name), q) || strings.Contains(strings.ToLower(r.Cuisine), q) {
			results = append(results, r)
		}
	}
	return results
}

// Menu returns the menu for one restaurant.
func (s *Store) Menu(restaurantID string) (*Menu, error) {
	r := s.findRestaurant(restaurantID)
	if r == nil {
		return nil, ErrRestaurantNotFound
	}
	return &Menu{Restaurant: r.Name, Menu: r.Menu}, nil
}

// PlaceOrder creates an order. Payment must be "cod" (case-insensitive);
// unknown item ids are skipped; a missing quantity defaults to 1. Order ids
// are sequential starting at ORD1001.
func (s *Store) PlaceOrder(restaurantID string, items []ItemSelection, deliveryAddress, paymentMethod string) (*Order, error) {
	if !strings.EqualFold(paymentMethod, "cod") {
		return nil, ErrPaymentMethod
	}

	r := s.findRestaurant(restaurantID)
	if r == nil {
		return nil, ErrRestaurantNotFound
	}

	total := 0
	orderItems := make([]OrderItem, 0, len(items))
	for _, sel := range items {
		menuItem := r.findItem(sel.ItemID)
		if menuItem == nil {
			continue
		}
		quantity := sel.Quantity
		if quantity <= 0 {
			quantity = 1
		}
		total += menuItem.Price * quantity
		orderItems = append(orderItems, OrderItem{
			Name:     menuItem.Name,
			Quantity: quantity,
			Price:    menuItem.Price,
		})
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	order := Order{
		OrderID:           fmt.Sprintf("ORD%d", len(s.orders)+1001),
		Restaurant:        r.Name,
		Items:             orderItems,
		Total:             total,
		DeliveryAddress:   deliveryAddress,
		PaymentMethod:     "Cash on Delivery",
		Status:            "Order Placed",
		EstimatedDelivery: r.DeliveryTime,
	}
	s.orders = append(s.orders, order)
	return &order, nil
}

// OrderStatus returns a placed order by id.
func (s *Store) OrderStatus(orderID string) (*Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for i := range s.orders {
		if s.orders[i].OrderID == orderID {
			order := s.orders[i]
			return &order, nil
		}
	}
	return nil, ErrOrderNotFound
}

func (s *Store) findRestaurant(id string) *Restaurant {
	for i := range s.restaurants {
		if s.restaurants[i].ID == id {
			return &s.restaurants[i]
		}
	}
	return nil
}

func (r *Restaurant) findItem(id string) *MenuItem {
	for i := range r.Menu {
		if r.Menu[i].ID == id {
			return &r.Menu[i]
		}
	}
	return nil
}
