package store

import (
	"github.com/gin-gonic/gin"
	dbconf "github.com/kthomas/go-db-config"
	uuid "github.com/kthomas/go.uuid"
	provide "github.com/provideplatform/provide-go/common"
)

// InstallAPI registers the journal API handlers with gin
func InstallAPI(r *gin.Engine) {
	r.GET("/api/v1/journal", listJournalEntriesHandler)
	r.GET("/api/v1/journal/head", journalHeadHandler)
	r.GET("/api/v1/journal/:id", journalEntryDetailsHandler)
}

func listJournalEntriesHandler(c *gin.Context) {
	db := dbconf.DatabaseConnection()
	query := db.Order("height desc")

	var entries []*Entry
	provide.Paginate(c, query, &Entry{}).Find(&entries)
	provide.Render(entries, 200, c)
}

func journalEntryDetailsHandler(c *gin.Context) {
	entryID, err := uuid.FromString(c.Param("id"))
	if err != nil {
		provide.RenderError("invalid journal entry id", 400, c)
		return
	}

	db := dbconf.DatabaseConnection()
	entry := &Entry{}
	db.Where("id = ?", entryID).Find(&entry)
	if entry.ID == uuid.Nil {
		provide.RenderError("journal entry not found", 404, c)
		return
	}

	provide.Render(entry, 200, c)
}

func journalHeadHandler(c *gin.Context) {
	head := Head(dbconf.DatabaseConnection())
	if head == nil {
		provide.RenderError("journal is empty", 404, c)
		return
	}
	provide.Render(head, 200, c)
}
