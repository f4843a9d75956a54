package teams

import (
	"fmt"
	"strconv"
	"time"

	"github.com/deltawatch-lab/deltawatch/internal/core/summary"
)

var (
	weekdaysES = [...]string{"domingo", "lunes", "martes", "miércoles", "jueves", "viernes", "sábado"}
	monthsES   = [...]string{"enero", "febrero", "marzo", "abril", "mayo", "junio", "julio",
		"agosto", "septiembre", "octubre", "noviembre", "diciembre"}
)

// spanishDate formats t as "lunes, marzo 02 2026".
func spanishDate(t time.Time) string {
	return fmt.Sprintf("%s, %s %02d %d", weekdaysES[t.Weekday()], monthsES[t.Month()-1], t.Day(), t.Year())
}

func windowLabel(from, to time.Time, loc *time.Location) string {
	if loc == nil {
		loc = time.Local
	}
	const layout = "02/01/2006 15:04:05"
	return from.In(loc).Format(layout) + " → " + to.In(loc).Format(layout)
}

// statusNote explains why a source has no counts. Empty for StatusOK.
func statusNote(status summary.Status, errText string) string {
	switch status {
	case summary.StatusSeeded:
		return "ℹ️ Primera ejecución, línea base establecida"
	case summary.StatusFailed:
		return "⚠️ Error al consultar: " + errText
	case summary.StatusRejected:
		return "⛔ Fuente rechazada: " + errText
	case summary.StatusCancelled:
		return "⏹️ Consulta cancelada"
	case summary.StatusSuperseded:
		return "↪️ Resultado descartado, otra ejecución avanzó el cursor"
	default:
		return ""
	}
}

func groupFacts(groups []summary.GroupCount) []Fact {
	facts := make([]Fact, 0, len(groups))
	for _, g := range groups {
		facts = append(facts, Fact{Title: g.Key, Value: strconv.FormatInt(g.Count, 10)})
	}
	return facts
}

// TransactionSummaryCard renders the transaction report, one section per source in
// report order.
func TransactionSummaryCard(s summary.OverallSummary, loc *time.Location) Payload {
	color := "Good"
	if !s.HasData() {
		color = "Accent"
	}

	body := []Element{
		title("📊 Resumen de Transacciones", color),
		subtle("🕐 " + windowLabel(s.FromTime, s.ToTime, loc)),
		separator(),
	}

	if len(s.Sources) == 0 {
		body = append(body, subtle("Sin fuentes consultadas. Verifique la conexión a la base de datos."))
	}

	for _, t := range s.Sources {
		body = append(body, heading(fmt.Sprintf("%s (%d)", t.SourceName, t.TotalCount())))
		if note := statusNote(t.Status, t.Error); note != "" {
			body = append(body, subtle(note))
			continue
		}
		body = append(body, factSet(groupFacts(t.Groups)))
	}

	body = append(body, separator(), factSet([]Fact{
		{Title: "Total", Value: strconv.FormatInt(s.TotalCount(), 10)},
	}))
	return newPayload(body)
}

// PaymentLogCard renders the processed / not processed report.
func PaymentLogCard(s summary.ClassifiedSummary, loc *time.Location) Payload {
	color := "Good"
	if s.NotProcessedCount() > 0 {
		color = "Warning"
	}

	body := []Element{
		title("💳 Payment Log", color),
		subtle("🕐 " + windowLabel(s.FromTime, s.ToTime, loc)),
		separator(),
	}

	if note := statusNote(s.Status, s.Error); note != "" {
		body = append(body, subtle(note))
		return newPayload(body)
	}

	body = append(body, heading(fmt.Sprintf("✅ Procesados (%d)", s.ProcessedCount())))
	if len(s.Processed) > 0 {
		body = append(body, factSet(groupFacts(s.Processed)))
	} else {
		body = append(body, subtle("Sin registros"))
	}

	body = append(body, heading(fmt.Sprintf("❌ No procesados (%d)", s.NotProcessedCount())))
	if len(s.NotProcessed) > 0 {
		body = append(body, factSet(groupFacts(s.NotProcessed)))
	} else {
		body = append(body, subtle("Sin registros"))
	}
	return newPayload(body)
}

// HeartbeatCard renders the scheduled "service alive" notification.
func HeartbeatCard(label string, now time.Time, environment string) Payload {
	clock := now.Format("15:04")
	if environment == "" {
		environment = "Production"
	}
	return newPayload([]Element{
		title("🔔 Notificación Programada - "+label, "Accent"),
		{Type: "TextBlock", Text: "📅 " + spanishDate(now) + "  |  🕐 " + clock, Wrap: true, Spacing: "Small"},
		separator(),
		factSet([]Fact{
			{Title: "Estado", Value: "✅ Servicio activo"},
			{Title: "Entorno", Value: environment},
			{Title: "Hora de envío", Value: clock},
		}),
	})
}
