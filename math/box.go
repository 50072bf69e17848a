package math

type Box struct {
	MinPos Position
	MaxPos Position
}

// EmptyBox is inverted so that the first Extend sets both corners.
func EmptyBox() Box {
	return Box{
		MinPos: NewPosition(90, 180),
		MaxPos: NewPosition(-90, -180),
	}
}

func (b *Box) Extend(p Position) {
	b.MinPos = NewPosition(min(b.MinPos.Lat(), p.Lat()), min(b.MinPos.Lon(), p.Lon()))
	b.MaxPos = NewPosition(max(b.MaxPos.Lat(), p.Lat()), max(b.MaxPos.Lon(), p.Lon()))
}

func (b *Box) Empty() bool {
	return b.MinPos.Lat() > b.MaxPos.Lat() || b.MinPos.Lon() > b.MaxPos.Lon()
}
