// This is the http read surface of the gateway.
// It serves order status, order listings and off-ramp progress computed from
// the order database plus the live collaborators. Pure reads, safe to poll.

package reporter

import (
	"errors"
	"net/http"

	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/bob-collective/gateway-go/catalog"
	"github.com/bob-collective/gateway-go/common"
	"github.com/bob-collective/gateway-go/confirm"
	"github.com/bob-collective/gateway-go/execprobe"
	"github.com/bob-collective/gateway-go/order"
	"github.com/bob-collective/gateway-go/orderdb"
)

const (
	ROUTE_HELLO        = "/hello"
	ROUTE_ORDER        = "/order/:uuid"
	ROUTE_ORDER_STATUS = "/order/:uuid/status"
	ROUTE_ORDERS       = "/orders"
	ROUTE_OFFRAMP      = "/offramp/:requestId"
	ROUTE_STRATEGIES   = "/strategies"
)

type HttpReporter struct {
	serverIP   string // listen ip
	serverPort string // listen port

	// upstream data sources
	db       *orderdb.OrderDB
	registry *catalog.Registry
	resolver *order.Resolver
	src      confirm.Source
	probe    execprobe.Probe
}

func NewHttpReporter(
	serverIP string,
	serverPort string,
	db *orderdb.OrderDB,
	registry *catalog.Registry,
	resolver *order.Resolver,
	src confirm.Source,
	probe execprobe.Probe,
) *HttpReporter {
	return &HttpReporter{
		serverIP:   serverIP,
		serverPort: serverPort,
		db:         db,
		registry:   registry,
		resolver:   resolver,
		src:        src,
		probe:      probe,
	}
}

// Hook up routes & handlers
func (h *HttpReporter) SetupRouter() *gin.Engine {
	router := gin.Default()

	router.GET(ROUTE_HELLO, Hello)
	router.GET(ROUTE_ORDER, h.Order)
	router.GET(ROUTE_ORDER_STATUS, h.OrderStatus)
	router.GET(ROUTE_ORDERS, h.Orders)
	router.GET(ROUTE_OFFRAMP, h.OffRampOrder)
	router.GET(ROUTE_STRATEGIES, h.Strategies)

	return router
}

// Hook up router & ip:port
func (h *HttpReporter) Run() {
	router := h.SetupRouter()
	address := h.serverIP + ":" + h.serverPort
	if err := router.Run(address); err != nil {
		panic(err)
	}
}

func Hello(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"message": "world",
	})
}

func (h *HttpReporter) Order(c *gin.Context) {
	o, ok := h.lookupOrder(c)
	if !ok {
		return
	}
	view := order.NewGatewayOrder(o, h.registry)
	c.JSON(http.StatusOK, view.Response())
}

func (h *HttpReporter) OrderStatus(c *gin.Context) {
	o, ok := h.lookupOrder(c)
	if !ok {
		return
	}
	st, err := h.resolver.Resolve(c.Request.Context(), o, h.src, h.probe)
	if err != nil {
		switch {
		case errors.Is(err, order.ErrNoTransactionObserved):
			c.JSON(http.StatusNotFound, gin.H{"error": "no bitcoin transaction observed"})
		case errors.Is(err, confirm.ErrTransactionNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "transaction not found"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		}
		return
	}
	c.JSON(http.StatusOK, st)
}

func (h *HttpReporter) Orders(c *gin.Context) {
	userAddr := c.Query("user")
	if !common.IsValidEvmAddress(userAddr) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "user must be a valid evm address"})
		return
	}
	orders, err := h.db.ListOrdersByUser(ethcommon.HexToAddress(userAddr))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	responses := make([]order.Response, 0, len(orders))
	for _, o := range orders {
		responses = append(responses, order.NewGatewayOrder(o, h.registry).Response())
	}
	c.JSON(http.StatusOK, gin.H{"data": responses})
}

func (h *HttpReporter) OffRampOrder(c *gin.Context) {
	requestId, err := uuid.Parse(c.Param("requestId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request id"})
		return
	}
	o, found, err := h.db.GetOffRampOrder(requestId)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if !found {
		c.JSON(http.StatusNotFound, gin.H{"error": "no off-ramp order found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"requestId":      o.RequestId.String(),
		"offrampAddress": o.OfframpAddress.Hex(),
		"satoshisToGet":  o.SatoshisToGet,
		"evmTxHash":      o.EvmTxHash.Hex(),
		"btcTxHash":      o.BtcTxHash,
		"timestamp":      o.Timestamp.Unix(),
		"done":           o.Done,
		"userAddress":    o.UserAddress.Hex(),
		"phase":          string(o.Phase()),
	})
}

func (h *HttpReporter) Strategies(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"data": h.registry.Strategies()})
}

func (h *HttpReporter) lookupOrder(c *gin.Context) (*order.Order, bool) {
	id, err := uuid.Parse(c.Param("uuid"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid order uuid"})
		return nil, false
	}
	o, found, err := h.db.GetOrder(id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return nil, false
	}
	if !found {
		c.JSON(http.StatusNotFound, gin.H{"error": "no order found"})
		return nil, false
	}
	return o, true
}
