package http

import (
	"github.com/gorilla/mux"
	httpSwagger "github.com/swaggo/http-swagger/v2"
)

// RegisterSwaggerDocs registers Swagger documentation routes
// @Summary Swagger documentation
// @Description Swagger API documentation for Inventory Service
// @Tags Swagger
// @Success 200 {string} string "Swagger UI"
// @Router /swagger/ [get]
func RegisterSwaggerDocs(router *mux.Router) {
	router.PathPrefix("/swagger/").Handler(httpSwagger.Handler(
		httpSwagger.URL("/swagger/doc.json"),
	))
}

// ListBooks godoc
// @Summary List books of a program
// @Description Get the books of a program. Any authenticated role.
// @Tags Books
// @Security BearerAuth
// @Produce json
// @Param programId query int true "Program ID"
// @Param active query bool false "Only active books"
// @Success 200 {object} object{success=bool,data=array}
// @Failure 400 {object} object{success=bool,error=string}
// @Failure 401 {object} object{success=bool,error=string}
// @Router /api/books [get]
func (h *InventoryHandler) ListBooksDoc() {}

// ListTransactions godoc
// @Summary List sales transactions
// @Description List transactions, optionally filtered by status and an inclusive upper date bound
// @Tags Transactions
// @Security BearerAuth
// @Produce json
// @Param status query string false "PENDING, APPROVED or REJECTED"
// @Param date query string false "Upper bound date (YYYY-MM-DD)"
// @Param programId query int false "Program ID"
// @Success 200 {object} object{success=bool,data=array}
// @Failure 400 {object} object{success=bool,error=string}
// @Router /api/transactions [get]
func (h *InventoryHandler) ListTransactionsDoc() {}

// ListCounts godoc
// @Summary List inventory counts for a date
// @Description Get the persisted inventory counts of a program on one date
// @Tags Counts
// @Security BearerAuth
// @Produce json
// @Param date path string true "Count date (YYYY-MM-DD)"
// @Param programId query int true "Program ID"
// @Success 200 {object} object{success=bool,data=array}
// @Failure 400 {object} object{success=bool,error=string}
// @Router /api/books/counts/{date} [get]
func (h *InventoryHandler) ListCountsDoc() {}

// SubmitCount godoc
// @Summary Save a manual count or confirm a discrepancy
// @Description Admin or supervisor. With confirmDiscrepancy the manual count becomes the book's stock and the book is returned.
// @Tags Counts
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param bookId path int true "Book ID"
// @Param request body object{manualCount=int,countDate=string,systemCount=int,confirmDiscrepancy=bool,setVerified=bool,programId=int} true "Count data"
// @Success 200 {object} object{success=bool,message=string,data=object{count=object,book=object}}
// @Failure 400 {object} object{success=bool,error=string}
// @Failure 403 {object} object{success=bool,error=string}
// @Failure 404 {object} object{success=bool,error=string}
// @Failure 409 {object} object{success=bool,error=string}
// @Router /api/books/{bookId}/counts [post]
func (h *InventoryHandler) SubmitCountDoc() {}

// HealthCheck godoc
// @Summary Health check
// @Description Check service health and database connectivity
// @Tags Health
// @Produce json
// @Success 200 {object} object{success=bool,message=string}
// @Failure 503 {object} object{success=bool,error=string}
// @Router /health [get]
func (h *InventoryHandler) HealthCheckDoc() {}
