package mcpserver

import (
	"context"
	"fmt"
	"strconv"

	"github.com/mark3labs/mcp-go/mcp"
)

func (s *Server) registerPrompts() {
	s.mcpServer.AddPrompt(mcp.NewPrompt("supply_chain_analysis",
		mcp.WithPromptDescription("Run a comprehensive supply chain analysis."),
		mcp.WithArgument("demand_rate", mcp.ArgumentDescription("Demand rate in units/day (default 100)")),
		mcp.WithArgument("lead_time", mcp.ArgumentDescription("Lead time in days (default 5)")),
	), s.handleSupplyChainPrompt)

	s.mcpServer.AddPrompt(mcp.NewPrompt("inventory_optimization",
		mcp.WithPromptDescription("Optimize inventory levels and policies."),
		mcp.WithArgument("target_service_level", mcp.ArgumentDescription("Target service level as a fraction (default 0.95)")),
	), s.handleInventoryPrompt)

	s.mcpServer.AddPrompt(mcp.NewPrompt("scenario_comparison",
		mcp.WithPromptDescription("Compare multiple simulation scenarios."),
		mcp.WithArgument("scenarios", mcp.ArgumentDescription("Description of the scenarios to compare"), mcp.RequiredArgument()),
	), s.handleScenarioPrompt)
}

// promptArgFloat parses a prompt argument as float64, falling back to the
// default when absent or unparsable.
func promptArgFloat(request mcp.GetPromptRequest, name string, fallback float64) float64 {
	raw, ok := request.Params.Arguments[name]
	if !ok || raw == "" {
		return fallback
	}
	value, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return fallback
	}
	return value
}

func userPrompt(description, text string) *mcp.GetPromptResult {
	return mcp.NewGetPromptResult(description, []mcp.PromptMessage{
		mcp.NewPromptMessage(mcp.RoleUser, mcp.NewTextContent(text)),
	})
}

func (s *Server) handleSupplyChainPrompt(ctx context.Context, request mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
	demandRate := promptArgFloat(request, "demand_rate", 100.0)
	leadTime := promptArgFloat(request, "lead_time", 5)

	text := fmt.Sprintf(`I need to analyze a supply chain system using AnyLogic simulation. Please help me:

1. **Connect to AnyLogic Cloud** using the connect_anylogic tool
2. **Find Supply Chain Models** using list_models or list_demo_models
3. **Run Simulation** with these parameters:
   - Demand Rate: %g units/day
   - Lead Time: %g days
   - Any other relevant parameters for supply chain optimization

4. **Analyze Results** focusing on:
   - Inventory levels and turnover
   - Service level performance
   - Cost optimization opportunities
   - Bottleneck identification

5. **Generate Recommendations** for:
   - Optimal inventory policies
   - Lead time reduction strategies
   - Demand forecasting improvements

Please proceed step by step and provide detailed analysis of the simulation results.`, demandRate, leadTime)

	return userPrompt("Supply chain analysis", text), nil
}

func (s *Server) handleInventoryPrompt(ctx context.Context, request mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
	serviceLevel := promptArgFloat(request, "target_service_level", 0.95)

	text := fmt.Sprintf(`I want to optimize inventory management using AnyLogic simulation. Please help me:

1. **Setup Simulation Environment**
   - Connect to AnyLogic Cloud
   - Select appropriate supply chain or inventory model

2. **Configure Optimization Parameters**
   - Target Service Level: %g%%
   - Various inventory policies (EOQ, (s,S), etc.)
   - Different demand patterns

3. **Run Multiple Scenarios** testing:
   - Different reorder points
   - Various order quantities
   - Safety stock levels
   - Review periods

4. **Performance Analysis**
   - Service level achievement
   - Inventory holding costs
   - Ordering costs
   - Total cost optimization

5. **Recommendations**
   - Optimal inventory policy
   - Parameter settings
   - Implementation guidelines

Please execute this analysis and provide detailed recommendations for inventory optimization.`, serviceLevel*100)

	return userPrompt("Inventory optimization", text), nil
}

func (s *Server) handleScenarioPrompt(ctx context.Context, request mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
	scenarios, ok := request.Params.Arguments["scenarios"]
	if !ok || scenarios == "" {
		return nil, fmt.Errorf("scenarios argument is required")
	}

	text := fmt.Sprintf(`I need to compare multiple simulation scenarios using AnyLogic. Please help me:

**Scenarios to Compare:**
%s

**Analysis Process:**
1. **Setup and Connect** to AnyLogic Cloud
2. **Identify Appropriate Model** for scenario comparison
3. **Run Simulations** for each scenario with the specified parameters
4. **Collect Results** for all scenarios
5. **Comparative Analysis** including:
   - Key performance indicators
   - Statistical significance testing
   - Sensitivity analysis
   - Risk assessment

**Deliverables:**
- Side-by-side comparison table
- Performance metrics dashboard
- Recommendations for best scenario
- Risk-benefit analysis
- Implementation considerations

Please execute this multi-scenario analysis and provide comprehensive comparison results.`, scenarios)

	return userPrompt("Scenario comparison", text), nil
}
