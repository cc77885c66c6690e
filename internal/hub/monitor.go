package hub

import (
	"Circlet/internal/model"
	"sort"
	"time"
)

// MonitorService provides methods to gather hub statistics
type MonitorService struct {
	hub *Hub
}

// NewMonitorService creates a new monitor service
func NewMonitorService(hub *Hub) *MonitorService {
	return &MonitorService{hub: hub}
}

// GetStats gathers and returns all hub statistics
func (ms *MonitorService) GetStats() model.MonitorResponse {
	connectionStats := ms.getConnectionStats()

	// Determine overall health status
	status := "healthy"
	if connectionStats.TotalConnections == 0 {
		status = "idle"
	}

	return model.MonitorResponse{
		Status:      status,
		Connections: connectionStats,
		Rooms:       ms.getRoomStats(),
		Calls:       ms.getCallStats(),
		Clients:     ms.getClientList(),
	}
}

func (ms *MonitorService) getConnectionStats() model.ConnectionStats {
	perUser := make(map[string]int)
	endpoints := ms.hub.registry.All()
	for _, ep := range endpoints {
		perUser[ep.UserID()]++
	}

	stats := model.ConnectionStats{
		TotalConnections: len(endpoints),
		OnlineUsers:      len(perUser),
	}
	for _, n := range perUser {
		if n > 1 {
			stats.MultiDeviceUsers++
		}
	}
	return stats
}

func (ms *MonitorService) getRoomStats() model.RoomStats {
	stats := model.RoomStats{
		RoomDetails: make([]model.RoomInfo, 0),
	}

	ms.hub.rooms.each(func(room string, members []Endpoint) {
		users := make(map[string]struct{}, len(members))
		for _, ep := range members {
			users[ep.UserID()] = struct{}{}
		}
		stats.RoomDetails = append(stats.RoomDetails, model.RoomInfo{
			Room:          room,
			Members:       len(members),
			DistinctUsers: len(users),
		})
		stats.TotalRooms++
	})

	sort.Slice(stats.RoomDetails, func(i, j int) bool {
		return stats.RoomDetails[i].Room < stats.RoomDetails[j].Room
	})
	return stats
}

func (ms *MonitorService) getCallStats() model.CallStats {
	calls := ms.hub.calls.Snapshot()
	stats := model.CallStats{
		TotalActiveCalls: len(calls),
		ByStatus:         make(map[string]int),
		CallDetails:      make([]model.CallInfo, 0, len(calls)),
	}

	for _, call := range calls {
		stats.ByStatus[string(call.Status)]++
		stats.CallDetails = append(stats.CallDetails, model.CallInfo{
			CallID:      call.CallID,
			CallerID:    call.CallerID,
			RecipientID: call.RecipientID,
			CallType:    call.CallType,
			Status:      string(call.Status),
			StartedAt:   call.CreatedAt.Format(time.RFC3339),
		})
	}
	return stats
}

// getClientList returns list of all connected clients
func (ms *MonitorService) getClientList() []model.ClientInfo {
	endpoints := ms.hub.registry.All()
	clients := make([]model.ClientInfo, 0, len(endpoints))

	for _, ep := range endpoints {
		clients = append(clients, model.ClientInfo{
			ClientID: ep.ID(),
			UserID:   ep.UserID(),
			Rooms:    ms.hub.rooms.RoomsOf(ep.ID()),
		})
	}
	return clients
}
