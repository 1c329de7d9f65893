package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

const adminPageHTML = `<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>Admin · Payforge</title>
    <link rel="icon" href="data:image/svg+xml,<svg xmlns='http://www.w3.org/2000/svg' viewBox='0 0 100 100'><text y='.9em' font-size='90'>⬡</text></svg>">
    <link href="https://fonts.googleapis.com/css2?family=Inter:wght@400;500;600&family=JetBrains+Mono:wght@400;500&display=swap" rel="stylesheet">
    <style>
        * { margin: 0; padding: 0; box-sizing: border-box; }
        :root {
            --bg: #09090b; --bg-subtle: #18181b; --border: #27272a;
            --text: #fafafa; --text-secondary: #a1a1aa; --text-tertiary: #52525b;
            --accent: #6366f1; --ok: #22c55e; --warn: #f59e0b;
        }
        body {
            font-family: 'Inter', -apple-system, sans-serif;
            background: var(--bg); color: var(--text);
            min-height: 100vh; font-size: 14px;
        }
        .mono { font-family: 'JetBrains Mono', monospace; }
        .container { max-width: 1100px; margin: 0 auto; padding: 0 24px; }
        header { border-bottom: 1px solid var(--border); padding: 16px 0; }
        .header-inner { display: flex; justify-content: space-between; align-items: center; }
        .logo { display: flex; align-items: center; gap: 10px; }
        .logo-mark { width: 24px; height: 24px; background: var(--accent); border-radius: 6px; }
        .logo-text { font-weight: 600; font-size: 15px; }
        nav a { color: var(--text-secondary); text-decoration: none; font-size: 13px; margin-left: 24px; }
        nav a:hover { color: var(--text); }
        h1 { font-size: 20px; font-weight: 600; padding: 32px 0 16px; }
        table { width: 100%; border-collapse: collapse; }
        th { text-align: left; color: var(--text-tertiary); font-size: 12px; font-weight: 500; padding: 10px 12px; border-bottom: 1px solid var(--border); }
        td { padding: 12px; border-bottom: 1px solid var(--border); font-size: 13px; }
        .badge { padding: 2px 8px; border-radius: 4px; font-size: 11px; text-transform: uppercase; }
        .badge.paid { background: rgba(34,197,94,0.15); color: var(--ok); }
        .badge.awaiting_payment, .badge.confirming, .badge.pending { background: rgba(245,158,11,0.15); color: var(--warn); }
        .badge.expired, .badge.cancelled, .badge.refunded { background: rgba(82,82,91,0.3); color: var(--text-tertiary); }
        .empty { text-align: center; padding: 48px; color: var(--text-tertiary); }
    </style>
</head>
<body>
    <header><div class="container header-inner">
        <div class="logo"><div class="logo-mark"></div><span class="logo-text">Payforge Admin</span></div>
        <nav><a href="/console">Merchant console</a></nav>
    </div></header>
    <main class="container">
        <h1>All invoices</h1>
        <table>
            <thead><tr><th>Invoice</th><th>Store</th><th>Order</th><th>Amount</th><th>Status</th><th>Created</th></tr></thead>
            <tbody id="invoices"><tr><td colspan="6" class="empty">Loading…</td></tr></tbody>
        </table>
    </main>
    <script>
        const esc = s => String(s ?? '').replace(/[&<>"']/g, m => ({'&':'&amp;','<':'&lt;','>':'&gt;','"':'&quot;',"'":'&#39;'}[m]));

        fetch('/admin/api/invoices').then(r => {
            if (r.status === 401) { location.href = '/login'; throw new Error('unauthenticated'); }
            return r.json();
        }).then(data => {
            const rows = (data.invoices || []).map(inv =>
                '<tr><td class="mono">' + esc(inv.id) + '</td>' +
                '<td class="mono">' + esc(inv.storeId) + '</td>' +
                '<td>' + esc(inv.orderId) + '</td>' +
                '<td class="mono">' + esc(inv.fiatAmount) + ' ' + esc(inv.fiatCurrency) + '</td>' +
                '<td><span class="badge ' + esc(inv.status) + '">' + esc(inv.status) + '</span></td>' +
                '<td>' + new Date(inv.createdAt).toLocaleString() + '</td></tr>'
            ).join('');
            document.getElementById('invoices').innerHTML = rows || '<tr><td colspan="6" class="empty">No invoices</td></tr>';
        });
    </script>
</body>
</html>`

func (s *Server) adminPageHandler(c *gin.Context) {
	c.Header("Content-Type", "text/html; charset=utf-8")
	c.String(http.StatusOK, adminPageHTML)
}
