package domain

type Occupancy struct {
	Occupied int `json:"occupied"`
	Vacant   int `json:"vacant"`
}

func (o Occupancy) Total() int {
	return o.Occupied + o.Vacant
}

type PlotOccupancy struct {
	PlotID int `json:"plot_id"`
	Occupancy
}

type AppStats struct {
	NetRevenue float64 `json:"net_revenue"`
	Occupied   int     `json:"occupied"`
	Vacant     int     `json:"vacant"`
}
