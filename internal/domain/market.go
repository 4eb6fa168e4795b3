package domain

// Descriptor del mercado binario de un período, tal y como lo devuelve la
// API de discovery. Winner solo está presente cuando el mercado ha resuelto.
type MarketDescriptor struct {
	Slug        string
	ConditionID string
	UpTokenID   string
	DownTokenID string
	Active      bool
	Closed      bool
	Winner      *Side
}

// Token devuelve el token ERC-1155 del lado indicado.
func (m MarketDescriptor) Token(side Side) string {
	if side == SideUp {
		return m.UpTokenID
	}
	return m.DownTokenID
}

// SideOfToken devuelve el lado al que pertenece un token del mercado.
// El segundo valor es false si el token no pertenece a este mercado.
func (m MarketDescriptor) SideOfToken(tokenID string) (Side, bool) {
	switch tokenID {
	case m.UpTokenID:
		return SideUp, true
	case m.DownTokenID:
		return SideDown, true
	}
	return "", false
}

// Resolved indica si el mercado ha cerrado con un ganador conocido.
func (m MarketDescriptor) Resolved() bool {
	return m.Closed && m.Winner != nil
}

// Tradeable indica si el mercado acepta órdenes.
func (m MarketDescriptor) Tradeable() bool {
	return m.Active && !m.Closed
}
