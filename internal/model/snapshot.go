package model

// SnapshotKey фиксированное имя записи в persistent store
// (исторически совпадает с ключом localStorage веб-версии)
const SnapshotKey = "clip-booking-storage"

// Snapshot сериализуемый срез состояния потока бронирования.
// Записывается после каждой мутации и читается один раз при старте,
// чтобы восстановить прерванный поток. Занятые даты (bookedDates)
// намеренно не сохраняются и всегда перечитываются с бэкенда.
type Snapshot struct {
	LineUser        *User       `json:"line_user"`
	IsAuthenticated bool        `json:"is_authenticated"`
	Booking         BookingData `json:"booking"`
	Payment         PaymentData `json:"payment"`
}
